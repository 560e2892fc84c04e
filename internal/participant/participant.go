// Package participant classifies session participants as the AI interviewer
// or the human candidate.
package participant

import (
	"strings"
	"unicode"
)

// Role is the conversational role of a participant.
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

// Label returns the display label for the role.
func (r Role) Label() string {
	if r == RoleInterviewer {
		return "Interviewer"
	}
	return "Candidate"
}

// DefaultMarkers are the identity tokens that mark an AI agent.
var DefaultMarkers = []string{"agent", "ai"}

// Classifier decides which identities belong to the AI agent.
type Classifier struct {
	markers map[string]struct{}
}

// NewClassifier builds a classifier from agent markers. An empty list
// falls back to DefaultMarkers.
func NewClassifier(markers ...string) *Classifier {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	c := &Classifier{markers: make(map[string]struct{}, len(markers))}
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			c.markers[m] = struct{}{}
		}
	}
	return c
}

// IsAgent reports whether the identity contains an agent marker. Identities
// are split on non-alphanumeric runes and trailing digits are ignored, so
// "agent-1", "agent7" and "AI" match while "aidan" does not.
func (c *Classifier) IsAgent(identity string) bool {
	tokens := strings.FieldsFunc(strings.ToLower(identity), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		tok = strings.TrimRightFunc(tok, unicode.IsDigit)
		if _, ok := c.markers[tok]; ok {
			return true
		}
	}
	return false
}

// Role resolves the role for an identity.
func (c *Classifier) Role(identity string) Role {
	if c.IsAgent(identity) {
		return RoleInterviewer
	}
	return RoleCandidate
}
