// Package repo contains all database access logic for the collector.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/digit-srl/diarycollector/internal/domain"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DailyStatsRepo defines the persistence operations for daily statistics.
// The service layer depends on this interface, not the concrete Postgres
// implementation, which allows the pipeline to be unit-tested with a mock.
type DailyStatsRepo interface {
	// FindByKey returns the record stored for an installation on a given day.
	// date is matched on its calendar day. Returns domain.ErrNotFound if absent.
	FindByKey(ctx context.Context, installationID string, date time.Time) (domain.DailyStatsRecord, error)

	// Append inserts a new record and returns it with ID and CreatedAt populated.
	// Returns domain.ErrDuplicate if a record for the same key already exists.
	Append(ctx context.Context, rec domain.DailyStatsRecord) (domain.DailyStatsRecord, error)
}

// pgDailyStatsRepo is the Postgres implementation of DailyStatsRepo.
type pgDailyStatsRepo struct {
	db db
}

// NewDailyStatsRepo constructs a DailyStatsRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewDailyStatsRepo(db db) DailyStatsRepo {
	return &pgDailyStatsRepo{db: db}
}

const dailyStatsColumns = `
	id, installation_id, date, total_minutes_tracked, total_vouchers_earned,
	centroid_latitude, centroid_longitude,
	location_count, vehicle_count, event_count, sample_count, discarded_sample_count,
	bounding_box_diagonal,
	minutes_at_home, minutes_at_work, minutes_at_school,
	minutes_at_other_known_locations, minutes_elsewhere,
	created_at`

// FindByKey retrieves a record by its (installation_id, date) key.
func (r *pgDailyStatsRepo) FindByKey(ctx context.Context, installationID string, date time.Time) (domain.DailyStatsRecord, error) {
	q := `SELECT ` + dailyStatsColumns + `
		FROM daily_stats
		WHERE installation_id = @installation_id AND date = @date`

	args := pgx.NamedArgs{
		"installation_id": installationID,
		"date":            pgDate(date),
	}

	result, err := scanDailyStats(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.DailyStatsRecord{}, fmt.Errorf("repo.DailyStatsRepo.FindByKey: %w", err)
	}
	return result, nil
}

// Append inserts a record row and returns the full persisted record.
// The table's unique key is the authoritative duplicate check: two concurrent
// uploads for the same day can both pass a prior lookup, only one insert wins.
func (r *pgDailyStatsRepo) Append(ctx context.Context, rec domain.DailyStatsRecord) (domain.DailyStatsRecord, error) {
	q := `
		INSERT INTO daily_stats (
			installation_id, date, total_minutes_tracked, total_vouchers_earned,
			centroid_latitude, centroid_longitude,
			location_count, vehicle_count, event_count, sample_count, discarded_sample_count,
			bounding_box_diagonal,
			minutes_at_home, minutes_at_work, minutes_at_school,
			minutes_at_other_known_locations, minutes_elsewhere
		) VALUES (
			@installation_id, @date, @total_minutes_tracked, @total_vouchers_earned,
			@centroid_latitude, @centroid_longitude,
			@location_count, @vehicle_count, @event_count, @sample_count, @discarded_sample_count,
			@bounding_box_diagonal,
			@minutes_at_home, @minutes_at_work, @minutes_at_school,
			@minutes_at_other_known_locations, @minutes_elsewhere
		)
		RETURNING ` + dailyStatsColumns

	lt := rec.LocationTracking
	args := pgx.NamedArgs{
		"installation_id":                  rec.InstallationID,
		"date":                             pgDate(rec.Date),
		"total_minutes_tracked":            rec.TotalMinutesTracked,
		"total_vouchers_earned":            rec.TotalVouchersEarned,
		"centroid_latitude":                rec.Centroid.Latitude,
		"centroid_longitude":               rec.Centroid.Longitude,
		"location_count":                   rec.LocationCount,
		"vehicle_count":                    rec.VehicleCount,
		"event_count":                      rec.EventCount,
		"sample_count":                     rec.SampleCount,
		"discarded_sample_count":           rec.DiscardedSampleCount,
		"bounding_box_diagonal":            rec.BoundingBoxDiagonal,
		"minutes_at_home":                  lt.MinutesAtHome,
		"minutes_at_work":                  lt.MinutesAtWork,
		"minutes_at_school":                lt.MinutesAtSchool,
		"minutes_at_other_known_locations": lt.MinutesAtOtherKnownLocations,
		"minutes_elsewhere":                lt.MinutesElsewhere,
	}

	result, err := scanDailyStats(r.db.QueryRow(ctx, q, args))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.DailyStatsRecord{}, fmt.Errorf("repo.DailyStatsRepo.Append: %w", domain.ErrDuplicate)
		}
		return domain.DailyStatsRecord{}, fmt.Errorf("repo.DailyStatsRepo.Append: %w", err)
	}
	return result, nil
}

// pgDate converts t to a Postgres DATE holding its UTC calendar day.
func pgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: domain.DateOnly(t), Valid: true}
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanDailyStats maps a single database row into a domain.DailyStatsRecord.
func scanDailyStats(s scanner) (domain.DailyStatsRecord, error) {
	var (
		rec  domain.DailyStatsRecord
		id   pgtype.UUID
		date pgtype.Date
		lt   = &rec.LocationTracking
	)

	err := s.Scan(
		&id, &rec.InstallationID, &date, &rec.TotalMinutesTracked, &rec.TotalVouchersEarned,
		&rec.Centroid.Latitude, &rec.Centroid.Longitude,
		&rec.LocationCount, &rec.VehicleCount, &rec.EventCount, &rec.SampleCount, &rec.DiscardedSampleCount,
		&rec.BoundingBoxDiagonal,
		&lt.MinutesAtHome, &lt.MinutesAtWork, &lt.MinutesAtSchool,
		&lt.MinutesAtOtherKnownLocations, &lt.MinutesElsewhere,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DailyStatsRecord{}, domain.ErrNotFound
		}
		return domain.DailyStatsRecord{}, err
	}

	rec.ID = uuid.UUID(id.Bytes)
	rec.Date = domain.DateOnly(date.Time)
	return rec, nil
}
