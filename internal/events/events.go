// Package events publishes one message per finished receipt delivery so
// downstream consumers (CRM sync, donor-care dashboards) can react without
// polling the API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/nyashahama/community-donor-backend/internal/dispatch"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "donation-dispatch-events"

// Event is the JSON payload written for a finished run.
type Event struct {
	DonationID  uuid.UUID        `json:"donation_id"`
	ApprovalSeq int64            `json:"approval_seq"`
	Run         int              `json:"run"`
	Stage       dispatch.Stage   `json:"stage"`
	Outcome     dispatch.Outcome `json:"outcome"`
	ReceiptNo   string           `json:"receipt_no,omitempty"`
	ReceiptURL  string           `json:"receipt_url,omitempty"`
	Error       string           `json:"error,omitempty"`
	FinishedAt  time.Time        `json:"finished_at"`
}

// FromStatus builds the event for a terminal status.
func FromStatus(st dispatch.Status) Event {
	return Event{
		DonationID:  st.DonationID,
		ApprovalSeq: st.ApprovalSeq,
		Run:         st.Runs,
		Stage:       st.Stage,
		Outcome:     st.Outcome,
		ReceiptNo:   st.ReceiptNo,
		ReceiptURL:  st.ReceiptURL,
		Error:       st.Error,
		FinishedAt:  st.UpdatedAt,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements dispatch.Events on a kafka-go Writer.
type KafkaPublisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewKafkaPublisher writes to topic on brokers. An empty topic means
// DefaultTopic.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return newKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}, logger)
}

func newKafkaPublisher(w messageWriter, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: logger}
}

// DispatchFinished writes the event keyed by donation id, so every event for a
// donation lands on the same partition in order.
func (p *KafkaPublisher) DispatchFinished(ctx context.Context, st dispatch.Status) error {
	v, err := json.Marshal(FromStatus(st))
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(st.DonationID.String()),
		Value: v,
		Time:  time.Now(),
	}); err != nil {
		return fmt.Errorf("events: write: %w", err)
	}
	p.logger.Debug("events: published", "donation_id", st.DonationID, "outcome", st.Outcome)
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop discards events. It is used when no brokers are configured.
type Nop struct{}

func (Nop) DispatchFinished(context.Context, dispatch.Status) error { return nil }
func (Nop) Close() error                                            { return nil }
