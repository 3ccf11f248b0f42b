package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/filecache/internal/resource"
)

func TestAsyncSinkDeliversAndCloses(t *testing.T) {
	inner := &recordingSink{}
	sink := NewAsyncSink(inner, 2, 16)
	for i := 0; i < 10; i++ {
		sink.Send(context.Background(), resource.LoadFailedNoData())
	}
	sink.Close()
	if inner.count() != 10 {
		t.Fatalf("expected 10 deliveries after close, got %d", inner.count())
	}

	sink.Send(context.Background(), resource.LoadFailedNoData())
	sink.Close()
	if inner.count() != 10 {
		t.Fatalf("sends after close must be dropped")
	}
}

func TestAsyncSinkDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	inner := SinkFunc(func(context.Context, error) {
		once.Do(func() { close(started) })
		<-release
	})
	sink := NewAsyncSink(inner, 1, 1)

	sink.Send(context.Background(), errors.New("first"))
	<-started
	sink.Send(context.Background(), errors.New("queued"))
	// 队列已满，这次发送必须立即返回。
	sink.Send(context.Background(), errors.New("dropped"))

	close(release)
	sink.Close()
}

func TestAsyncSinkIgnoresCallerCancellation(t *testing.T) {
	got := make(chan error, 1)
	sink := NewAsyncSink(SinkFunc(func(ctx context.Context, err error) {
		got <- ctx.Err()
	}), 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Send(ctx, errors.New("late"))
	sink.Close()
	if err := <-got; err != nil {
		t.Fatalf("worker context should not be cancelled, got %v", err)
	}
}

func TestLogSinkWritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	id := resource.MustParseIdentifier("https://example.com/a.png")
	LogSink{Logger: logger}.Send(context.Background(), &RequestError{
		Identifier: id,
		Origin:     OriginObtain,
		Err:        resource.Unauthorized(errors.New("401")),
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	if entry["kind"] != "unauthorized" || entry["resource"] != id.String() || entry["msg"] != "resource_failed" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
}
