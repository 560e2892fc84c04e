package source

import (
	"encoding/json"
	"errors"
	"fmt"

	"interview-transcript-service/internal/models"
	"interview-transcript-service/internal/schema"
)

const (
	FrameTranscription = "transcription"
	FrameConnection    = "connection"
)

// Frame is the envelope streamed by media bridges:
//
//	{"type":"transcription","event":{"segments":...,"participant":...,"publication":...}}
//	{"type":"connection","state":"connected"}
type Frame struct {
	Type  string                 `json:"type"`
	Event json.RawMessage        `json:"event,omitempty"`
	State models.ConnectionState `json:"state,omitempty"`
}

// ErrUnknownFrame is wrapped by Dispatch for frame types it does not handle.
var ErrUnknownFrame = errors.New("unknown frame type")

// Dispatch decodes one frame and delivers it through b.
func (b *Broker) Dispatch(data []byte) error {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	switch f.Type {
	case FrameTranscription:
		ev, err := schema.Decode(f.Event)
		if err != nil {
			return err
		}
		b.Publish(ev)
	case FrameConnection:
		if f.State == "" {
			return errors.New("connection frame without state")
		}
		b.SetState(f.State)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFrame, f.Type)
	}
	return nil
}
