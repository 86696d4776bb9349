// Package repository persists finished games.
package repository

import (
	"context"
	"errors"

	"github.com/park285/cheese-arena/internal/session"
)

var ErrNotFound = errors.New("game result not found")

// Reader is the read side of a result archive. Get returns ErrNotFound for unknown ids.
type Reader interface {
	Get(ctx context.Context, gameID string) (*session.Summary, error)
	Recent(ctx context.Context, limit int) ([]*session.Summary, error)
}

// Repository stores and reads finished game summaries. SaveResult is an upsert keyed
// by game id, so repeated deliveries are harmless.
type Repository interface {
	Reader
	SaveResult(ctx context.Context, sum *session.Summary) error
	Close() error
}

const defaultRecentLimit = 20

func clampLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return defaultRecentLimit
	}
	return limit
}
