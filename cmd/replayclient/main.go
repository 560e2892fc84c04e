// Replay client - drives the transcript service from a scripted session.
// In push mode it posts frames to a push room. In bridge mode it poses as a
// media bridge and streams frames to every service room that dials in.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func main() {
	scriptPath := flag.String("script", "", "Path to JSONL session script")
	mode := flag.String("mode", "push", "Replay mode: push or bridge")
	api := flag.String("api", "http://localhost:8080", "Service HTTP API address (push mode)")
	roomID := flag.String("room", "", "Room ID to create (push mode, generated when empty)")
	listen := flag.String("listen", ":9000", "Listen address (bridge mode)")
	speed := flag.Float64("speed", 1, "Playback speed multiplier")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if *scriptPath == "" {
		log.Fatal().Msg("-script is required")
	}
	f, err := os.Open(*scriptPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open script")
	}
	steps, err := loadScript(f)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse script")
	}
	log.Info().Int("frames", len(steps)).Str("mode", *mode).Msg("Script loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "push":
		runPush(ctx, steps, *api, *roomID, *speed)
	case "bridge":
		runBridge(ctx, steps, *listen, *speed)
	default:
		log.Fatal().Str("mode", *mode).Msg("Unknown mode")
	}
}

func runPush(ctx context.Context, steps []step, api, roomID string, speed float64) {
	p := &pusher{client: &http.Client{Timeout: 10 * time.Second}, api: api}
	id, err := p.createRoom(ctx, roomID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open room")
	}
	log.Info().Str("roomId", id).Msg("Room opened")

	start := time.Now()
	err = replay(ctx, steps, speed, func(s step) error {
		return p.send(ctx, id, s)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Replay failed")
	}
	log.Info().Str("roomId", id).Dur("elapsed", time.Since(start)).Msg("Replay finished")
}

func runBridge(ctx context.Context, steps []step, listen string, speed float64) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("WebSocket upgrade error")
			return
		}
		defer conn.Close()

		logger := log.With().Str("remote", r.RemoteAddr).Logger()
		logger.Info().Msg("Bridge client connected")
		err = replay(r.Context(), steps, speed, func(s step) error {
			data, err := json.Marshal(s.Frame)
			if err != nil {
				return err
			}
			return conn.WriteMessage(websocket.TextMessage, data)
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Bridge replay stopped")
			return
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "script finished"),
			time.Now().Add(time.Second))
		logger.Info().Msg("Bridge replay finished")
	})

	server := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	log.Info().Str("addr", listen).Msg("Bridge listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Bridge server error")
	}
}
