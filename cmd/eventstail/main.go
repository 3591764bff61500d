// Command eventstail follows the orchestrator's Kafka topics and prints
// call lifecycle and transcript events as they arrive. Useful when
// watching a live campaign.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

type envelope struct {
	EventType string `json:"eventType"`
	Room      string `json:"room"`
	Timestamp int64  `json:"timestamp"`
}

func main() {
	var (
		brokers         = flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
		topicLifecycle  = flag.String("topic-lifecycle", "call.lifecycle", "lifecycle topic")
		topicTranscript = flag.String("topic-transcript", "call.transcripts", "transcript topic")
		since           = flag.Duration("since", time.Hour, "replay window before tailing")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		cancel()
	}()

	go tail(ctx, strings.Split(*brokers, ","), *topicLifecycle, *since)
	go tail(ctx, strings.Split(*brokers, ","), *topicTranscript, *since)

	<-ctx.Done()
}

func tail(ctx context.Context, brokers []string, topic string, since time.Duration) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		log.Warn().Str("topic", topic).Err(err).Msg("Offset seek failed, starting from current position")
	}
	log.Info().Str("topic", topic).Dur("since", since).Msg("Tailing topic")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Str("topic", topic).Err(err).Msg("Read failed, retrying")
			time.Sleep(time.Second)
			continue
		}

		var ev envelope
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log.Warn().Str("topic", topic).Err(err).Msg("Undecodable event")
			continue
		}
		log.Info().
			Str("topic", topic).
			Str("eventType", ev.EventType).
			Str("room", ev.Room).
			RawJSON("payload", msg.Value).
			Msg("Event")
	}
}
