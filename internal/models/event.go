package models

// TranscriptionEvent is the strict form of an inbound transcription batch.
// Raw producer payloads are converted into this shape by the schema package.
type TranscriptionEvent struct {
	Segments    []WireSegment    `json:"segments"`
	Participant *ParticipantInfo `json:"participant,omitempty"`
	Publication *PublicationInfo `json:"publication,omitempty"`
}

// WireSegment is a segment as sent by the media session.
type WireSegment struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// ParticipantInfo identifies the speaker of a batch.
type ParticipantInfo struct {
	Identity string `json:"identity,omitempty"`
	Name     string `json:"name,omitempty"`
}

// PublicationInfo identifies the media track a batch was transcribed from.
type PublicationInfo struct {
	TrackSid string `json:"trackSid,omitempty"`
}
