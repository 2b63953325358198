package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/commentgen/internal/models"
)

func TestMemoryStorage_LatestComment(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	_, err := s.LatestComment(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveComment(ctx, &models.AuditRow{UserID: "u1", GeneratedComment: "first"}))
	require.NoError(t, s.SaveComment(ctx, &models.AuditRow{UserID: "u2", GeneratedComment: "other"}))
	row := &models.AuditRow{UserID: "u1", GeneratedComment: "second"}
	require.NoError(t, s.SaveComment(ctx, row))

	assert.Equal(t, int64(3), row.ID)
	assert.Equal(t, base.Add(3*time.Minute), row.CreatedAt)

	got, err := s.LatestComment(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	got, err = s.LatestComment(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "other", got)

	assert.Len(t, s.Rows(), 3)
}
