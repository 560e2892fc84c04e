package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"interview-transcript-service/internal/models"
	"interview-transcript-service/internal/observability/logging"
	"interview-transcript-service/internal/service/room"
	"interview-transcript-service/internal/service/viewmodel"
)

const (
	writeWait = 10 * time.Second

	FrameView   = "view"
	FrameScroll = "scroll"

	CommandScroll         = "scroll"
	CommandScrollToLatest = "scrollToLatest"
)

// ViewerFrame is pushed to transcript viewers.
type ViewerFrame struct {
	Type            string                 `json:"type"`
	View            *viewmodel.View        `json:"view,omitempty"`
	ConnectionState models.ConnectionState `json:"connectionState,omitempty"`
	// AutoScroll tells the client to scroll to the newest message.
	AutoScroll bool `json:"autoScroll"`
	// Unseen counts updates received while the viewer was scrolled away.
	Unseen int `json:"unseen"`
}

// ViewerCommand is sent by transcript viewers.
type ViewerCommand struct {
	Type     string `json:"type"`
	AtBottom bool   `json:"atBottom"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *roomHandlers) watch(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	rm, err := h.rooms.Get(roomID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		l := logging.WithRoom(roomID)
		l.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel, err := rm.Watch()
	if err != nil {
		closeWith(conn, websocket.CloseGoingAway, err.Error())
		return
	}
	defer cancel()

	v := &viewer{
		conn:     conn,
		follower: viewmodel.NewFollower(),
		log:      logging.WithRoomComponent(roomID, "viewer"),
	}
	v.log.Info().Str("remote", r.RemoteAddr).Msg("Viewer connected")
	v.serve(updates)
	v.log.Info().Msg("Viewer disconnected")
}

type viewer struct {
	conn     *websocket.Conn
	follower *viewmodel.Follower
	log      zerolog.Logger
}

// serve owns all writes and the follower. Reads happen on a helper goroutine.
func (v *viewer) serve(updates <-chan room.Update) {
	cmds := make(chan ViewerCommand)
	readDone := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(readDone)
		for {
			var cmd ViewerCommand
			if err := v.conn.ReadJSON(&cmd); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					v.log.Debug().Err(err).Msg("Viewer read error")
				}
				return
			}
			select {
			case cmds <- cmd:
			case <-stop:
				return
			}
		}
	}()

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				closeWith(v.conn, websocket.CloseGoingAway, "room closed")
				return
			}
			view := u.View
			frame := ViewerFrame{
				Type:            FrameView,
				View:            &view,
				ConnectionState: u.State,
				AutoScroll:      v.follower.ContentChanged(),
				Unseen:          v.follower.Unseen(),
			}
			if err := v.write(frame); err != nil {
				return
			}
		case cmd := <-cmds:
			switch cmd.Type {
			case CommandScroll:
				v.follower.Scrolled(cmd.AtBottom)
			case CommandScrollToLatest:
				v.follower.ScrollToLatest()
			default:
				v.log.Debug().Str("type", cmd.Type).Msg("Ignoring unknown viewer command")
				continue
			}
			frame := ViewerFrame{
				Type:       FrameScroll,
				AutoScroll: v.follower.Following(),
				Unseen:     v.follower.Unseen(),
			}
			if err := v.write(frame); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}

func (v *viewer) write(frame ViewerFrame) error {
	v.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := v.conn.WriteJSON(frame); err != nil {
		v.log.Debug().Err(err).Msg("Viewer write failed")
		return err
	}
	return nil
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}
