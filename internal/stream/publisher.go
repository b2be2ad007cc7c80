package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"PerpPool/internal/pool"
)

// Publisher pushes committed operation records to NATS for downstream
// consumers (indexers, dashboards). Subjects follow the pattern:
// pool.events.{event_type}.{token}
type Publisher struct {
	js        jetstream.JetStream
	inputChan <-chan pool.Output
}

func NewPublisher(js jetstream.JetStream, inputChan <-chan pool.Output) *Publisher {
	return &Publisher{
		js:        js,
		inputChan: inputChan,
	}
}

// Run starts the publisher loop. Publish failures are non-fatal: the
// operation log in Postgres is the source of truth and consumers can
// re-read it.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-p.inputChan:
			if !ok {
				return nil
			}

			if err := p.publish(ctx, out); err != nil {
				log.Printf("WARN: outbound publish failed seq=%d: %v", out.Envelope.Sequence, err)
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, out pool.Output) error {
	env := out.Envelope
	body := struct {
		Sequence    int64       `json:"sequence"`
		OperationID string      `json:"operation_id"`
		EventType   string      `json:"event_type"`
		Token       string      `json:"token,omitempty"`
		Timestamp   time.Time   `json:"timestamp"`
		Payload     interface{} `json:"payload"`
	}{
		Sequence:    env.Sequence,
		OperationID: env.OperationID,
		EventType:   env.EventType.String(),
		Token:       env.Token,
		Timestamp:   env.Timestamp,
		Payload:     env.Payload,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	subject := fmt.Sprintf("pool.events.%s", env.EventType)
	if env.Token != "" {
		subject = fmt.Sprintf("%s.%s", subject, env.Token)
	}

	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureStream creates the outbound events stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "POOL_EVENTS",
		Subjects:  []string{"pool.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Println("INFO: ensured outbound stream POOL_EVENTS")
	return nil
}
