package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"interview-transcript-service/internal/config"
	"interview-transcript-service/internal/events"
	"interview-transcript-service/internal/observability/logging"
	"interview-transcript-service/internal/service/reconcile"
	"interview-transcript-service/internal/service/room"
	"interview-transcript-service/internal/service/source"
	"interview-transcript-service/internal/service/source/kafka"
	"interview-transcript-service/internal/service/source/mock"
	"interview-transcript-service/internal/service/source/push"
	"interview-transcript-service/internal/service/source/ws"
	"interview-transcript-service/internal/service/viewmodel"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
	Publisher   *events.Publisher
	Rooms       *room.Manager

	ready atomic.Bool
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) *Application {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("Interview transcript service application created")
	return a
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	lc := logging.DefaultConfig()
	lc.Level = a.Cfg.Observability.LogLevel
	lc.Format = a.Cfg.Observability.LogFormat
	logging.Init(lc)

	a.Logger = logging.WithComponent("application")

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", lc.Format).
		Msg("Logger setup completed")
}

// RoomConfig derives per-room settings from the service configuration.
func RoomConfig(cfg *config.Config) room.Config {
	r := cfg.Reconciler
	return room.Config{
		Reconcile: reconcile.Config{
			MinPartialLength:    r.MinPartialLength,
			UserPromotionDelay:  r.UserPromotionDelay,
			AgentPromotionDelay: r.AgentPromotionDelay,
			DedupWindow:         r.DedupWindow,
			DedupSimilarity:     r.DedupSimilarity,
			StaleAfter:          r.StaleAfter,
		},
		View: viewmodel.Config{
			MinPartialLength: r.MinPartialLength,
			MaxPending:       r.MaxPendingDisplay,
		},
		SweepInterval: r.SweepInterval,
		AgentMarkers:  r.AgentMarkers,
	}
}

// Start builds the publisher and room manager. Room sources run until ctx
// is cancelled or their room closes.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()

	a.Publisher = events.New(&events.Config{
		Brokers:      a.Cfg.Kafka.Brokers,
		TopicPending: a.Cfg.Kafka.TopicPending,
		TopicFinal:   a.Cfg.Kafka.TopicFinal,
		Principal:    a.Cfg.Kafka.Principal,
		Enabled:      a.Cfg.Kafka.Enabled,
	})
	a.Rooms = room.NewManager(ctx, RoomConfig(a.Cfg), a.NewSource, room.WithPublisher(a.Publisher))
	a.ready.Store(true)

	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Str("defaultSource", a.Cfg.Source.Kind).
		Bool("kafkaEnabled", a.Publisher.Enabled()).
		Msg("Interview transcript service starting")

	return nil
}

// NewSource builds the event source for a room. An empty kind selects the
// configured default.
func (a *Application) NewSource(roomID, kind string) (source.Source, error) {
	if kind == "" {
		kind = a.Cfg.Source.Kind
	}
	sc := a.Cfg.Source

	switch kind {
	case config.SourcePush:
		return push.New(), nil
	case config.SourceWS:
		if sc.WSURL == "" {
			return nil, fmt.Errorf("ws source: no bridge url configured")
		}
		return ws.New(roomID, ws.DefaultConfig(sc.WSURL)), nil
	case config.SourceKafka:
		return kafka.New(roomID, kafka.Config{
			Brokers: a.Cfg.Kafka.Brokers,
			Topic:   sc.KafkaTopic,
			GroupID: sc.KafkaGroupID,
		})
	case config.SourceMock:
		mc := mock.DefaultConfig()
		mc.PartialInterval = sc.MockPartialInterval
		mc.TurnGap = sc.MockTurnGap
		mc.Loop = sc.MockLoop
		return mock.New(roomID, mc, nil), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}

// Ready reports whether the service accepts traffic.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Shutdown closes every room and flushes the publisher.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	a.ready.Store(false)
	if a.Rooms != nil {
		a.Rooms.CloseAll()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			shutdownLogger.Error().Err(err).Msg("Error closing publisher")
		}
	}

	shutdownLogger.Info().Msg("Interview transcript service shutting down")
}
