package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"garage-layout/internal/dispatch"
	"garage-layout/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(topic string, qos byte, _ bool, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic: topic, qos: qos, payload: payload})
	return nil
}

var fixedClock = domain.ClockFunc(func() time.Time {
	return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
})

func TestBatchWriter_PublishesNotice(t *testing.T) {
	var written []string
	inner := dispatch.WriterFunc(func(_ context.Context, path string, _ []byte) error {
		written = append(written, path)
		return nil
	})
	pub := &fakePublisher{}
	n := NewNotifier(inner, pub, "", 1, fixedClock, nil)

	b := n.Batch("batch-1")
	require.NoError(t, b.Write(context.Background(), "cameraHub", []byte("12345")))
	require.NoError(t, b.Write(context.Background(), "fli:CAM-1", []byte("12")))

	assert.Equal(t, []string{"cameraHub", "fli:CAM-1"}, written)
	require.Len(t, pub.msgs, 2)
	assert.Equal(t, DefaultTopic, pub.msgs[0].topic)
	assert.Equal(t, byte(1), pub.msgs[0].qos)

	var notice Notice
	require.NoError(t, json.Unmarshal(pub.msgs[0].payload, &notice))
	assert.Equal(t, Notice{
		BatchID:     "batch-1",
		LogicalPath: "cameraHub",
		Bytes:       5,
		WrittenAt:   fixedClock.Now(),
	}, notice)

	assert.JSONEq(t,
		`{"batch_id":"batch-1","logical_path":"fli:CAM-1","bytes":2,"written_at":"2026-05-04T10:00:00Z"}`,
		string(pub.msgs[1].payload))
}

func TestBatchWriter_InnerFailureSkipsNotice(t *testing.T) {
	boom := errors.New("read-only file system")
	pub := &fakePublisher{}
	n := NewNotifier(dispatch.WriterFunc(func(context.Context, string, []byte) error { return boom }), pub, "t", 0, fixedClock, nil)

	err := n.Write(context.Background(), "devicesConfig", nil)
	assert.Same(t, boom, err)
	assert.Empty(t, pub.msgs)
}

func TestBatchWriter_PublishFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	pub := &fakePublisher{err: errors.New("not connected")}
	ok := dispatch.WriterFunc(func(context.Context, string, []byte) error { return nil })
	n := NewNotifier(ok, pub, "t", 0, fixedClock, zap.New(core))

	require.NoError(t, n.Write(context.Background(), "devicesConfig", []byte("x")))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "devicesConfig", logs.All()[0].ContextMap()["logical_path"])
}

func TestNotifier_BatchIDs(t *testing.T) {
	n := NewNotifier(nil, &fakePublisher{}, "", 0, nil, nil)
	a, b := n.Batch(""), n.Batch("")
	assert.Len(t, a.ID(), 36)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, "fixed", n.Batch("fixed").ID())
}
