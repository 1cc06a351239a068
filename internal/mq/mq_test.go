package mq

import (
	"context"
	"testing"
	"time"

	"github.com/schoollms/apiserver/config"
)

func TestMemoryBrokerDeliversToSubscribers(t *testing.T) {
	broker := New(NewMemoryBroker())
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Message, 1)
	subscribed := make(chan struct{})
	go func() {
		close(subscribed)
		_ = broker.Subscribe(ctx, "lesson-events", func(ctx context.Context, msg Message) error {
			received <- msg
			return nil
		})
	}()
	<-subscribed

	// Subscribe registers asynchronously; publish until the message lands.
	deadline := time.After(2 * time.Second)
	for {
		if _, err := broker.Publish(ctx, "lesson-events", []byte(`{"type":"lesson.created"}`), map[string]string{"type": "lesson.created"}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		select {
		case msg := <-received:
			if string(msg.Data) != `{"type":"lesson.created"}` {
				t.Fatalf("unexpected payload %q", msg.Data)
			}
			if msg.Attributes["type"] != "lesson.created" {
				t.Fatalf("unexpected attributes %v", msg.Attributes)
			}
			if msg.ID == "" {
				t.Fatalf("expected message id")
			}
			return
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("message was not delivered")
		}
	}
}

func TestMemoryBrokerRejectsEmptyChannel(t *testing.T) {
	broker := NewMemoryBroker()
	if _, err := broker.Publish(context.Background(), " ", nil, nil); err == nil {
		t.Fatalf("expected error for empty channel")
	}
}

func TestMemoryBrokerClosed(t *testing.T) {
	broker := NewMemoryBroker()
	if err := broker.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := broker.Publish(context.Background(), "lesson-events", nil, nil); err == nil {
		t.Fatalf("expected publish on closed broker to fail")
	}
}

func TestOpen(t *testing.T) {
	m, err := Open(context.Background(), config.Config{})
	if err != nil || m != nil {
		t.Fatalf("Open() with no backend = %v, %v; want nil, nil", m, err)
	}

	m, err = Open(context.Background(), config.Config{MQBackend: config.BackendMemory})
	if err != nil || m == nil {
		t.Fatalf("Open(memory) = %v, %v", m, err)
	}
	_ = m.Close()

	if _, err := Open(context.Background(), config.Config{MQBackend: "kafka"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	if _, err := Open(context.Background(), config.Config{MQBackend: config.BackendRabbitMQ}); err == nil {
		t.Fatalf("expected error for rabbitmq without url")
	}
}
