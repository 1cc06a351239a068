package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/schoollms/apiserver/config"
)

func TestMemoryBucketRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStorage(NewMemoryBucket("exports"))

	body := `{"timetables":[]}`
	if err := store.Put(ctx, "exports/a.json", strings.NewReader(body), int64(len(body)), "application/json"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	reader, err := store.Get(ctx, "exports/a.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	data, _ := io.ReadAll(reader)
	_ = reader.Close()
	if string(data) != body {
		t.Fatalf("Get() = %q, want %q", data, body)
	}

	if err := store.Delete(ctx, "exports/a.json"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "exports/a.json"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("Get() after delete error = %v, want ErrObjectNotFound", err)
	}
	if store.Bucket() != "exports" {
		t.Fatalf("Bucket() = %q", store.Bucket())
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.Config{})
	if err != nil || s != nil {
		t.Fatalf("Open() with no backend = %v, %v; want nil, nil", s, err)
	}
	if s, err := Open(ctx, config.Config{StorageBackend: config.BackendMemory}); err != nil || s == nil {
		t.Fatalf("Open(memory) = %v, %v", s, err)
	}
	if _, err := Open(ctx, config.Config{StorageBackend: "s3"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	if _, err := Open(ctx, config.Config{StorageBackend: config.BackendMinio}); err == nil {
		t.Fatalf("expected error for minio without endpoint")
	}
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	bucket := NewMemoryBucket("exports")
	clock := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	bucket.now = func() time.Time { return clock }
	store := NewStorage(bucket)

	for _, key := range []string{"exports/old.json", "exports/new.json", "other/skip.json"} {
		if err := store.Put(ctx, key, strings.NewReader("{}"), 2, "application/json"); err != nil {
			t.Fatalf("Put(%s) error = %v", key, err)
		}
		clock = clock.Add(time.Minute)
	}

	objects, err := store.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("List() returned %d objects, want 2", len(objects))
	}
	if objects[0].Key != "exports/new.json" || objects[1].Key != "exports/old.json" {
		t.Fatalf("List() order = %s, %s", objects[0].Key, objects[1].Key)
	}
	if objects[0].Size != 2 {
		t.Fatalf("Size = %d, want 2", objects[0].Size)
	}
}
