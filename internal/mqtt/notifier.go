// Package mqtt announces written configuration documents so field services
// can reload them.
package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"garage-layout/internal/dispatch"
	"garage-layout/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTopic for change notices.
const DefaultTopic = "garage/config/changed"

// Publisher is satisfied by common/mqtt.Client.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Notice is the JSON payload published after each document write.
type Notice struct {
	BatchID     string    `json:"batch_id"`
	LogicalPath string    `json:"logical_path"`
	Bytes       int       `json:"bytes"`
	WrittenAt   time.Time `json:"written_at"`
}

// Notifier decorates a Writer: after the inner write succeeds it publishes
// a Notice. Publish failures are logged; the write still counts.
type Notifier struct {
	next   dispatch.Writer
	pub    Publisher
	topic  string
	qos    byte
	clock  domain.Clock
	logger *zap.Logger
}

// NewNotifier wraps next. Empty topic uses DefaultTopic.
func NewNotifier(next dispatch.Writer, pub Publisher, topic string, qos byte, clock domain.Clock, logger *zap.Logger) *Notifier {
	if topic == "" {
		topic = DefaultTopic
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{next: next, pub: pub, topic: topic, qos: qos, clock: clock, logger: logger}
}

// Batch returns a Writer whose notices share one batch id. An empty id
// generates one.
func (n *Notifier) Batch(batchID string) *BatchWriter {
	if batchID == "" {
		batchID = uuid.NewString()
	}
	return &BatchWriter{n: n, batchID: batchID}
}

// Write writes under a fresh batch of one document.
func (n *Notifier) Write(ctx context.Context, logicalPath string, content []byte) error {
	return n.Batch("").Write(ctx, logicalPath, content)
}

// BatchWriter writes documents of one export.
type BatchWriter struct {
	n       *Notifier
	batchID string
}

// ID returns the batch id.
func (b *BatchWriter) ID() string { return b.batchID }

// Write implements dispatch.Writer.
func (b *BatchWriter) Write(ctx context.Context, logicalPath string, content []byte) error {
	n := b.n
	if err := n.next.Write(ctx, logicalPath, content); err != nil {
		return err
	}
	payload, err := json.Marshal(Notice{
		BatchID:     b.batchID,
		LogicalPath: logicalPath,
		Bytes:       len(content),
		WrittenAt:   n.clock.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := n.pub.Publish(n.topic, n.qos, false, payload); err != nil {
		n.logger.Error("Failed to publish config change notice",
			zap.String("logical_path", logicalPath),
			zap.String("batch_id", b.batchID),
			zap.Error(err),
		)
	}
	return nil
}
