// Package service contains the business logic of the collector.
// It validates uploads, enforces the one-record-per-day rule, computes the
// voucher entitlement and orchestrates the issuer and repo calls.
// No SQL or HTTP lives here; services depend on interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/digit-srl/diarycollector/internal/domain"
	"github.com/digit-srl/diarycollector/internal/metrics"
	"github.com/digit-srl/diarycollector/internal/repo"
)

var tracer = otel.Tracer("github.com/digit-srl/diarycollector/internal/service")

//go:generate mockgen -source=ingest.go -destination=mocks/issuer_mock.go -package=mocks VoucherIssuer

// VoucherIssuer mints vouchers on an external platform.
// *wom.Client satisfies it.
type VoucherIssuer interface {
	RequestVouchers(ctx context.Context, req domain.VoucherRequest) (domain.VoucherReceipt, error)
}

// IngestService turns an uploaded daily summary into vouchers and a stored record.
type IngestService struct {
	stats   repo.DailyStatsRepo
	issuer  VoucherIssuer
	guard   *DuplicateGuard
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	cache   SeenCache
}

// Option configures an IngestService.
type Option func(*IngestService)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *IngestService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the Prometheus collectors. Nil disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *IngestService) { s.metrics = m }
}

// WithSeenCache puts a cache in front of the duplicate lookup.
func WithSeenCache(c SeenCache) Option {
	return func(s *IngestService) { s.cache = c }
}

// WithClock sets the clock used to decide which days have elapsed.
func WithClock(now func() time.Time) Option {
	return func(s *IngestService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewIngestService constructs an IngestService backed by the given record
// store and voucher issuer.
func NewIngestService(stats repo.DailyStatsRepo, issuer VoucherIssuer, opts ...Option) *IngestService {
	s := &IngestService{
		stats:  stats,
		issuer: issuer,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.guard = NewDuplicateGuard(stats, s.cache, s.logger)
	return s
}

// Ingest validates sub, rejects duplicates, requests the vouchers it earns and
// stores the record. Rejections are returned as *domain.Problem.
//
// Vouchers are requested before the record is stored and are never revoked:
// if Append fails afterwards the error is returned and the issued vouchers
// stay valid.
func (s *IngestService) Ingest(ctx context.Context, sub domain.DailyStatsSubmission) (domain.UploadConfirmation, error) {
	ctx, span := tracer.Start(ctx, "IngestService.Ingest", trace.WithAttributes(
		attribute.String("installation_id", sub.InstallationID),
		attribute.String("date", sub.Date.Format(time.DateOnly)),
	))
	defer span.End()

	conf, err := s.ingest(ctx, sub)
	s.metrics.IncrementOutcome(outcomeOf(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.UploadConfirmation{}, err
	}
	return conf, nil
}

func (s *IngestService) ingest(ctx context.Context, sub domain.DailyStatsSubmission) (domain.UploadConfirmation, error) {
	log := s.logger.With(
		"installation_id", sub.InstallationID,
		"date", sub.Date.Format(time.DateOnly),
	)
	log.InfoContext(ctx, "receiving daily stats")

	centroid, ruleName, problem := validate(sub, s.now().UTC())
	if problem != nil {
		log.ErrorContext(ctx, "daily stats rejected",
			"rule", ruleName,
			"title", problem.Title,
			"detail", problem.Detail,
		)
		return domain.UploadConfirmation{}, problem
	}
	day := domain.DateOnly(sub.Date)

	start := time.Now()
	exists, err := s.guard.Exists(ctx, sub.InstallationID, day)
	s.metrics.ObserveStage("duplicate_check", time.Since(start))
	if err != nil {
		return domain.UploadConfirmation{}, fmt.Errorf("service.IngestService.Ingest: %w", err)
	}
	if exists {
		log.ErrorContext(ctx, "duplicate statistics for date")
		return domain.UploadConfirmation{}, domain.DuplicateProblem()
	}

	home := sub.LocationTracking.MinutesAtHome
	count := VoucherCount(sub.TotalMinutesTracked, home)
	log.InfoContext(ctx, "generating vouchers",
		"vouchers", count,
		"total_minutes", sub.TotalMinutesTracked,
		"minutes_at_home", home,
	)

	start = time.Now()
	receipt, err := s.issuer.RequestVouchers(ctx, domain.VoucherRequest{
		Aim:       domain.VoucherAim,
		Count:     count,
		Latitude:  centroid.Latitude,
		Longitude: centroid.Longitude,
		Timestamp: domain.EndOfDay(day),
	})
	s.metrics.ObserveStage("issue_vouchers", time.Since(start))
	if err != nil {
		log.ErrorContext(ctx, "voucher request failed", "error", err)
		return domain.UploadConfirmation{}, fmt.Errorf("service.IngestService.Ingest: %w: %w", domain.ErrIssuance, err)
	}
	s.metrics.AddVouchers(count)

	start = time.Now()
	_, err = s.stats.Append(ctx, toRecord(sub, day, count, centroid))
	s.metrics.ObserveStage("persist", time.Since(start))
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// Lost a race with a concurrent upload for the same day.
			log.ErrorContext(ctx, "duplicate statistics detected on insert, vouchers already issued",
				"vouchers", count,
				"wom_link", receipt.Link,
			)
			return domain.UploadConfirmation{}, domain.DuplicateProblem()
		}
		log.ErrorContext(ctx, "failed to store daily stats, vouchers already issued",
			"vouchers", count,
			"wom_link", receipt.Link,
			"error", err,
		)
		return domain.UploadConfirmation{}, fmt.Errorf("service.IngestService.Ingest: %w", err)
	}
	s.guard.MarkSeen(ctx, sub.InstallationID, day)

	return domain.UploadConfirmation{
		WomLink:     receipt.Link,
		WomPassword: receipt.Password,
		WomCount:    count,
	}, nil
}

func toRecord(sub domain.DailyStatsSubmission, day time.Time, vouchers int, centroid domain.GeoCoordinate) domain.DailyStatsRecord {
	return domain.DailyStatsRecord{
		InstallationID:       sub.InstallationID,
		Date:                 day,
		TotalMinutesTracked:  sub.TotalMinutesTracked,
		TotalVouchersEarned:  vouchers,
		Centroid:             centroid,
		LocationCount:        sub.LocationCount,
		VehicleCount:         sub.VehicleCount,
		EventCount:           sub.EventCount,
		SampleCount:          sub.SampleCount,
		DiscardedSampleCount: sub.DiscardedSampleCount,
		BoundingBoxDiagonal:  sub.BoundingBoxDiagonal,
		LocationTracking:     *sub.LocationTracking,
	}
}

// outcomeOf maps an Ingest result to a metrics label.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeAccepted
	case errors.Is(err, domain.ErrInvalidSchema):
		return metrics.OutcomeInvalidSchema
	case errors.Is(err, domain.ErrInvalidDate):
		return metrics.OutcomeInvalidDate
	case errors.Is(err, domain.ErrInvalidData):
		return metrics.OutcomeInvalidData
	case errors.Is(err, domain.ErrDuplicate):
		return metrics.OutcomeDuplicate
	case errors.Is(err, domain.ErrIssuance):
		return metrics.OutcomeIssuanceFailed
	default:
		return metrics.OutcomePersistenceError
	}
}
