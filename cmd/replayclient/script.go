package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"interview-transcript-service/internal/service/source"
)

// step is one scripted bridge frame, sent after Delay.
type step struct {
	source.Frame
	DelayMs int64 `json:"delayMs,omitempty"`
}

func (s step) delay(speed float64) time.Duration {
	if speed <= 0 {
		speed = 1
	}
	return time.Duration(float64(s.DelayMs)/speed) * time.Millisecond
}

// loadScript reads JSON lines of frames. Blank lines and lines starting
// with '#' are skipped.
func loadScript(r io.Reader) ([]step, error) {
	var steps []step
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var s step
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		switch s.Type {
		case source.FrameTranscription:
			if len(s.Event) == 0 {
				return nil, fmt.Errorf("line %d: transcription frame without event", line)
			}
		case source.FrameConnection:
			if s.State == "" {
				return nil, fmt.Errorf("line %d: connection frame without state", line)
			}
		default:
			return nil, fmt.Errorf("line %d: unknown frame type %q", line, s.Type)
		}
		steps = append(steps, s)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}

// pusher replays a script against the service's push endpoints.
type pusher struct {
	client *http.Client
	api    string
}

// createRoom opens a push room and returns its ID.
func (p *pusher) createRoom(ctx context.Context, id string) (string, error) {
	body, _ := json.Marshal(map[string]string{"id": id, "source": "push"})
	resp, err := p.post(ctx, "/v1/rooms", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("open room: %s", resp.Status)
	}
	var info struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("open room: %w", err)
	}
	return info.ID, nil
}

func (p *pusher) send(ctx context.Context, roomID string, s step) error {
	var (
		path string
		body []byte
	)
	switch s.Type {
	case source.FrameTranscription:
		path, body = "/v1/rooms/"+roomID+"/events", s.Event
	case source.FrameConnection:
		path = "/v1/rooms/" + roomID + "/connection"
		body, _ = json.Marshal(map[string]string{"state": string(s.State)})
	}
	resp, err := p.post(ctx, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %s %s", path, resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}

func (p *pusher) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.api, "/")+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.client.Do(req)
}

// replay walks steps in order, honoring delays, and hands each to send.
func replay(ctx context.Context, steps []step, speed float64, send func(step) error) error {
	for _, s := range steps {
		if d := s.delay(speed); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if err := send(s); err != nil {
			return err
		}
	}
	return nil
}
