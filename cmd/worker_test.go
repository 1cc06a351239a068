package cmd

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/schoollms/apiserver/internal/mq"
	"github.com/schoollms/apiserver/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLessonEventLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := lessonEventLogger(zap.New(core))

	data, err := json.Marshal(types.LessonEvent{
		Type:       types.LessonCreated,
		Lesson:     types.Lesson{ID: 7, Subject: "Art", Teacher: "teacher1", DayOfWeek: "Monday", StartTime: "09:00"},
		Actor:      "admin",
		OccurredAt: time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := handler(context.Background(), mq.Message{ID: "m1", Data: data}); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	entries := logs.FilterMessage("lesson event").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["type"] != types.LessonCreated || fields["lesson_id"] != int64(7) || fields["actor"] != "admin" {
		t.Fatalf("unexpected fields %v", fields)
	}

	if err := handler(context.Background(), mq.Message{ID: "m2", Data: []byte("not json")}); err == nil {
		t.Fatalf("expected error for undecodable payload")
	}
}

func TestCheckWorkerBackend(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{backend: "rabbitmq"},
		{backend: "pubsub"},
		{backend: "memory", wantErr: true},
		{backend: "", wantErr: true},
		{backend: "kafka", wantErr: true},
	}
	for _, tt := range tests {
		err := checkWorkerBackend(tt.backend)
		if (err != nil) != tt.wantErr {
			t.Errorf("checkWorkerBackend(%q) error = %v, wantErr %v", tt.backend, err, tt.wantErr)
		}
	}
}
