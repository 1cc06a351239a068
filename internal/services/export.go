package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schoollms/apiserver/internal/storage"
	"github.com/schoollms/apiserver/types"
)

const exportPrefix = "exports/"

// ObjectStore is the subset of object storage the export needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

// TimetableExport is the document written to object storage.
type TimetableExport struct {
	GeneratedAt time.Time             `json:"generated_at"`
	GeneratedBy string                `json:"generated_by"`
	Timetables  []types.TimetableView `json:"timetables"`
}

// ExportService snapshots every timetable into object storage.
type ExportService struct {
	timetables *TimetableService
	objects    ObjectStore
	now        func() time.Time
}

// NewExportService wires the export. objects may be nil, in which case
// every call returns ErrStorageDisabled.
func NewExportService(timetables *TimetableService, objects ObjectStore) *ExportService {
	return &ExportService{timetables: timetables, objects: objects, now: time.Now}
}

// Export writes all timetables as JSON and returns the object key.
func (s *ExportService) Export(ctx context.Context, actor types.User) (string, error) {
	if !actor.IsAdmin() {
		return "", ErrForbidden
	}
	if s.objects == nil {
		return "", ErrStorageDisabled
	}
	views, err := s.timetables.List(ctx, actor, TimetableFilter{})
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	data, err := json.MarshalIndent(TimetableExport{
		GeneratedAt: now,
		GeneratedBy: actor.Username,
		Timetables:  views,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}

	key := fmt.Sprintf("%stimetables-%s-%s.json", exportPrefix, now.Format(types.DateLayout), uuid.NewString())
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return "", fmt.Errorf("upload export: %w", err)
	}
	return key, nil
}

// Open streams a previous export back. The key must name an export.
func (s *ExportService) Open(ctx context.Context, actor types.User, key string) (io.ReadCloser, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if s.objects == nil {
		return nil, ErrStorageDisabled
	}
	if !strings.HasPrefix(key, exportPrefix) || strings.Contains(key, "..") {
		return nil, fmt.Errorf("%w: invalid export key", ErrInvalidInput)
	}
	return s.objects.Get(ctx, key)
}

// List returns the stored exports, newest first.
func (s *ExportService) List(ctx context.Context, actor types.User) ([]storage.ObjectInfo, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if s.objects == nil {
		return nil, ErrStorageDisabled
	}
	exports, err := s.objects.List(ctx, exportPrefix)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	if exports == nil {
		exports = []storage.ObjectInfo{}
	}
	return exports, nil
}
