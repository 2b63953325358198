// Package storage keeps the audit trail of generated comments.
package storage

import (
	"context"
	"errors"

	"github.com/xaenox/commentgen/internal/models"
)

var ErrNotFound = errors.New("not found")

type Storage interface {
	// LatestComment returns the most recent generated comment of a user, or
	// ErrNotFound when there is none.
	LatestComment(ctx context.Context, userID string) (string, error)
	SaveComment(ctx context.Context, row *models.AuditRow) error
	Close() error
}
