package participant

import "testing"

func TestClassifier_IsAgent(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		identity string
		want     bool
	}{
		{"agent-1", true},
		{"agent7", true},
		{"AI", true},
		{"ai_interviewer", true},
		{"voice-agent", true},
		{"AGENT", true},
		{"user-1", false},
		{"aidan", false},
		{"agenda-bot", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.identity, func(t *testing.T) {
			if got := c.IsAgent(tt.identity); got != tt.want {
				t.Errorf("IsAgent(%q) = %v, want %v", tt.identity, got, tt.want)
			}
		})
	}
}

func TestClassifier_CustomMarkers(t *testing.T) {
	c := NewClassifier("bot", " ")

	if !c.IsAgent("interview-bot") {
		t.Error("expected custom marker to match")
	}
	if c.IsAgent("agent-1") {
		t.Error("expected default markers to be replaced")
	}
}

func TestClassifier_Role(t *testing.T) {
	c := NewClassifier()

	if r := c.Role("agent-1"); r != RoleInterviewer {
		t.Errorf("expected interviewer, got %s", r)
	}
	if r := c.Role("user-1"); r != RoleCandidate {
		t.Errorf("expected candidate, got %s", r)
	}
	if RoleInterviewer.Label() != "Interviewer" {
		t.Errorf("unexpected interviewer label %q", RoleInterviewer.Label())
	}
	if RoleCandidate.Label() != "Candidate" {
		t.Errorf("unexpected candidate label %q", RoleCandidate.Label())
	}
}
