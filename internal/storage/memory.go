package storage

import (
	"context"
	"sync"
	"time"

	"github.com/xaenox/commentgen/internal/models"
)

type MemoryStorage struct {
	mu     sync.RWMutex
	rows   []models.AuditRow
	nextID int64
	now    func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{now: time.Now}
}

func (s *MemoryStorage) LatestComment(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.AuditRow
	for i := range s.rows {
		row := &s.rows[i]
		if row.UserID != userID {
			continue
		}
		if latest == nil || !row.CreatedAt.Before(latest.CreatedAt) {
			latest = row
		}
	}
	if latest == nil {
		return "", ErrNotFound
	}
	return latest.GeneratedComment, nil
}

func (s *MemoryStorage) SaveComment(ctx context.Context, row *models.AuditRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	row.ID = s.nextID
	row.CreatedAt = s.now()
	s.rows = append(s.rows, *row)
	return nil
}

// Rows returns a copy of everything stored, oldest first.
func (s *MemoryStorage) Rows() []models.AuditRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AuditRow, len(s.rows))
	copy(out, s.rows)
	return out
}

func (s *MemoryStorage) Close() error {
	return nil
}
