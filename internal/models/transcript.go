// Package models defines the data structures for transcript reconciliation.
package models

import "time"

// Segment is one canonical unit of speech-to-text output after intake
// normalization. ParticipantID and TrackID are always populated.
type Segment struct {
	ParticipantID string
	TrackID       string
	Text          string
	IsFinal       bool
}

// TranscriptEntry is one immutable line of the final transcript log.
type TranscriptEntry struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participantId"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
	IsFinal       bool      `json:"isFinal"`
}

// PendingUtterance is speech in progress for a single (participant, track) key.
type PendingUtterance struct {
	Key           string    `json:"-"`
	ParticipantID string    `json:"participantId"`
	TrackID       string    `json:"trackId"`
	Text          string    `json:"text"`
	LastUpdate    time.Time `json:"lastUpdateTime"`
}

// ConnectionState is the lifecycle state of a real-time media session.
type ConnectionState string

const (
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionReconnecting ConnectionState = "reconnecting"
	ConnectionDisconnected ConnectionState = "disconnected"
)

// IsLive reports whether transcription events should be ingested in this state.
func (s ConnectionState) IsLive() bool {
	return s == ConnectionConnected
}

// Published event types.
const (
	EventTypePending = "interview.transcript.pending"
	EventTypeFinal   = "interview.transcript.final"
)

// TranscriptPending is published whenever a pending utterance changes.
type TranscriptPending struct {
	EventType     string `json:"eventType"`
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
	TrackID       string `json:"trackId"`
	Text          string `json:"text"`
	Removed       bool   `json:"removed,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// TranscriptFinal is published for every entry appended to the final log.
type TranscriptFinal struct {
	EventType     string `json:"eventType"`
	RoomID        string `json:"roomId"`
	EntryID       string `json:"entryId"`
	ParticipantID string `json:"participantId"`
	Role          string `json:"role"`
	Text          string `json:"text"`
	Cause         string `json:"cause"`
	Timestamp     int64  `json:"timestamp"`
}
