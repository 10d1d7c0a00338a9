package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/digit-srl/diarycollector/internal/domain"
	"github.com/digit-srl/diarycollector/internal/repo"
)

// SeenCache is an optional fast path in front of the record store.
// *seencache.Cache satisfies it.
type SeenCache interface {
	Seen(ctx context.Context, installationID string, date time.Time) (bool, error)
	MarkSeen(ctx context.Context, installationID string, date time.Time) error
}

// DuplicateGuard answers whether a record already exists for an installation's day.
// It never merges or updates: a hit means the upload is rejected.
type DuplicateGuard struct {
	stats  repo.DailyStatsRepo
	cache  SeenCache // may be nil
	logger *slog.Logger
}

// NewDuplicateGuard builds a guard over the record store. cache may be nil.
func NewDuplicateGuard(stats repo.DailyStatsRepo, cache SeenCache, logger *slog.Logger) *DuplicateGuard {
	if logger == nil {
		logger = slog.Default()
	}
	return &DuplicateGuard{stats: stats, cache: cache, logger: logger}
}

// Exists reports whether a record is stored for installationID on date's
// calendar day. Cache failures are logged and fall through to the store.
func (g *DuplicateGuard) Exists(ctx context.Context, installationID string, date time.Time) (bool, error) {
	day := domain.DateOnly(date)

	if g.cache != nil {
		seen, err := g.cache.Seen(ctx, installationID, day)
		if err != nil {
			g.logger.WarnContext(ctx, "seen cache lookup failed",
				"installation_id", installationID,
				"error", err,
			)
		} else if seen {
			return true, nil
		}
	}

	_, err := g.stats.FindByKey(ctx, installationID, day)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("service.DuplicateGuard.Exists: %w", err)
}

// MarkSeen records an appended key in the cache, if one is configured.
func (g *DuplicateGuard) MarkSeen(ctx context.Context, installationID string, date time.Time) {
	if g.cache == nil {
		return
	}
	if err := g.cache.MarkSeen(ctx, installationID, domain.DateOnly(date)); err != nil {
		g.logger.WarnContext(ctx, "seen cache update failed",
			"installation_id", installationID,
			"error", err,
		)
	}
}
