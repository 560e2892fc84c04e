// Transcript Viewer - tails published transcript events from Kafka and
// prints the reconciled transcript of a room to the terminal.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

const clearScreen = "\033[H\033[2J"

func consumeKafka(ctx context.Context, brokers []string, topic string, out chan<- []byte) error {
	// Use partition reader without consumer group (works better through port-forward)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-1*time.Hour)); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Failed to seek, reading from latest")
	}
	log.Info().Str("topic", topic).Msg("Consuming partition 0 (last hour)")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read error")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		select {
		case out <- msg.Value:
		case <-ctx.Done():
			return nil
		}
	}
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicPending := flag.String("topic-pending", "interview.transcript.pending", "Pending transcript topic")
	topicFinal := flag.String("topic-final", "interview.transcript.final", "Final transcript topic")
	room := flag.String("room", "", "Only show this room")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	list := strings.Split(*brokers, ",")
	values := make(chan []byte, 100)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumeKafka(gctx, list, *topicPending, values) })
	g.Go(func() error { return consumeKafka(gctx, list, *topicFinal, values) })

	t := newTail(*room)
	go func() {
		for {
			select {
			case <-gctx.Done():
				return
			case v := <-values:
				changed, err := t.apply(v)
				if err != nil {
					log.Debug().Err(err).Msg("Skipping message")
					continue
				}
				if changed {
					os.Stdout.WriteString(clearScreen)
					t.render(os.Stdout)
				}
			}
		}
	}()

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Viewer stopped")
	}
}
