package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/digit-srl/diarycollector/internal/domain"
	"github.com/digit-srl/diarycollector/internal/geohash"
	"github.com/digit-srl/diarycollector/internal/metrics"
	"github.com/digit-srl/diarycollector/internal/repo"
	"github.com/digit-srl/diarycollector/internal/service"
	"github.com/digit-srl/diarycollector/internal/service/mocks"
)

// mockDailyStatsRepo is a hand-written test double for repo.DailyStatsRepo.
// Each method is a function field; set only the ones your test needs.
type mockDailyStatsRepo struct {
	findByKey func(ctx context.Context, installationID string, date time.Time) (domain.DailyStatsRecord, error)
	append    func(ctx context.Context, rec domain.DailyStatsRecord) (domain.DailyStatsRecord, error)
}

func (m *mockDailyStatsRepo) FindByKey(ctx context.Context, installationID string, date time.Time) (domain.DailyStatsRecord, error) {
	return m.findByKey(ctx, installationID, date)
}
func (m *mockDailyStatsRepo) Append(ctx context.Context, rec domain.DailyStatsRecord) (domain.DailyStatsRecord, error) {
	return m.append(ctx, rec)
}

// compile-time check: mockDailyStatsRepo must satisfy repo.DailyStatsRepo.
var _ repo.DailyStatsRepo = (*mockDailyStatsRepo)(nil)

// memRepo is an in-memory DailyStatsRepo keyed like the real table.
type memRepo struct {
	mu      sync.Mutex
	records map[string]domain.DailyStatsRecord
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[string]domain.DailyStatsRecord{}}
}

func memKey(id string, d time.Time) string { return id + "|" + domain.DateOnly(d).Format(time.DateOnly) }

func (r *memRepo) FindByKey(_ context.Context, id string, d time.Time) (domain.DailyStatsRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[memKey(id, d)]
	if !ok {
		return domain.DailyStatsRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (r *memRepo) Append(_ context.Context, rec domain.DailyStatsRecord) (domain.DailyStatsRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := memKey(rec.InstallationID, rec.Date)
	if _, ok := r.records[k]; ok {
		return domain.DailyStatsRecord{}, domain.ErrDuplicate
	}
	rec.ID = uuid.New()
	rec.CreatedAt = time.Now()
	r.records[k] = rec
	return rec, nil
}

// mockSeenCache is a hand-written test double for service.SeenCache.
type mockSeenCache struct {
	seen    func(ctx context.Context, id string, d time.Time) (bool, error)
	marked  []string
	markErr error
}

func (m *mockSeenCache) Seen(ctx context.Context, id string, d time.Time) (bool, error) {
	return m.seen(ctx, id, d)
}
func (m *mockSeenCache) MarkSeen(_ context.Context, id string, d time.Time) error {
	m.marked = append(m.marked, memKey(id, d))
	return m.markErr
}

var _ service.SeenCache = (*mockSeenCache)(nil)

// ---- helpers ---------------------------------------------------------------

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(stats repo.DailyStatsRepo, issuer service.VoucherIssuer, opts ...service.Option) *service.IngestService {
	base := []service.Option{
		service.WithClock(func() time.Time { return fixedNow }),
		service.WithLogger(quietLogger()),
	}
	return service.NewIngestService(stats, issuer, append(base, opts...)...)
}

// untouchedRepo fails the test if the pipeline reaches the store.
func untouchedRepo(t *testing.T) *mockDailyStatsRepo {
	return &mockDailyStatsRepo{
		findByKey: func(context.Context, string, time.Time) (domain.DailyStatsRecord, error) {
			t.Fatal("FindByKey must not be called")
			return domain.DailyStatsRecord{}, nil
		},
		append: func(context.Context, domain.DailyStatsRecord) (domain.DailyStatsRecord, error) {
			t.Fatal("Append must not be called")
			return domain.DailyStatsRecord{}, nil
		},
	}
}

func receipt() domain.VoucherReceipt {
	return domain.VoucherReceipt{Link: "https://wom.social/vouchers/otc-1", Password: "1234"}
}

// ---- tests -----------------------------------------------------------------

func TestIngest_Accepted(t *testing.T) {
	ctrl := gomock.NewController(t)
	issuer := mocks.NewMockVoucherIssuer(ctrl)

	lat, lon, err := geohash.Decode("srbbz8")
	require.NoError(t, err)

	issuer.EXPECT().
		RequestVouchers(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req domain.VoucherRequest) (domain.VoucherReceipt, error) {
			assert.Equal(t, "HE", req.Aim)
			assert.Equal(t, 5, req.Count)
			assert.Equal(t, lat, req.Latitude)
			assert.Equal(t, lon, req.Longitude)
			assert.True(t, req.Timestamp.Equal(time.Date(2021, time.May, 1, 23, 59, 56, 400_000_000, time.UTC)),
				"timestamp %s", req.Timestamp)
			return receipt(), nil
		}).
		Times(1)

	var stored domain.DailyStatsRecord
	r := &mockDailyStatsRepo{
		findByKey: func(_ context.Context, _ string, _ time.Time) (domain.DailyStatsRecord, error) {
			return domain.DailyStatsRecord{}, domain.ErrNotFound
		},
		append: func(_ context.Context, rec domain.DailyStatsRecord) (domain.DailyStatsRecord, error) {
			stored = rec
			return rec, nil
		},
	}

	got, err := newService(r, issuer).Ingest(context.Background(), validSubmission())

	require.NoError(t, err)
	assert.Equal(t, domain.UploadConfirmation{
		WomLink:     "https://wom.social/vouchers/otc-1",
		WomPassword: "1234",
		WomCount:    5,
	}, got)

	sub := validSubmission()
	assert.Equal(t, sub.InstallationID, stored.InstallationID)
	assert.Equal(t, time.Date(2021, time.May, 1, 0, 0, 0, 0, time.UTC), stored.Date)
	assert.Equal(t, 5, stored.TotalVouchersEarned)
	assert.Equal(t, domain.GeoCoordinate{Latitude: lat, Longitude: lon}, stored.Centroid)
	assert.Equal(t, *sub.LocationTracking, stored.LocationTracking)
	assert.Equal(t, sub.SampleCount, stored.SampleCount)
	assert.Equal(t, sub.BoundingBoxDiagonal, stored.BoundingBoxDiagonal)
}

func TestIngest_DateWithTimeIsNormalized(t *testing.T) {
	ctrl := gomock.NewController(t)
	issuer := mocks.NewMockVoucherIssuer(ctrl)
	issuer.EXPECT().RequestVouchers(gomock.Any(), gomock.Any()).Return(receipt(), nil)

	var lookedUp time.Time
	var stored domain.DailyStatsRecord
	r := &mockDailyStatsRepo{
		findByKey: func(_ context.Context, _ string, d time.Time) (domain.DailyStatsRecord, error) {
			lookedUp = d
			return domain.DailyStatsRecord{}, domain.ErrNotFound
		},
		append: func(_ context.Context, rec domain.DailyStatsRecord) (domain.DailyStatsRecord, error) {
			stored = rec
			return rec, nil
		},
	}

	sub := validSubmission()
	sub.Date = time.Date(2021, time.May, 1, 17, 30, 0, 0, time.UTC)

	_, err := newService(r, issuer).Ingest(context.Background(), sub)

	require.NoError(t, err)
	midnight := time.Date(2021, time.May, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, midnight, lookedUp)
	assert.Equal(t, midnight, stored.Date)
}

func TestIngest_RejectedSubmissionHasNoSideEffects(t *testing.T) {
	ctrl := gomock.NewController(t)
	issuer := mocks.NewMockVoucherIssuer(ctrl) // no EXPECT: any call fails the test

	sub := validSubmission()
	sub.CentroidHash = "not-a-geohash"

	_, err := newService(untouchedRepo(t), issuer).Ingest(context.Background(), sub)

	p := requireProblem(t, err, domain.ErrInvalidData, "Cannot decode geohash")
	assert.NotEmpty(t, p.Detail)
}

func TestIngest_OversizedLocationTrackingIssuesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	issuer := mocks.NewMockVoucherIssuer(ctrl) // no EXPECT: any call fails the test

	sub := validSubmission()
	sub.LocationTracking = &domain.LocationTracking{MinutesAtHome: math.MaxInt64, MinutesAtWork: 1}

	_, err := newService(untouchedRepo(t), issuer).Ingest(context.Background(), sub)

	requireProblem(t, err, domain.ErrInvalidData, "Total minutes in location tracking exceeds minutes in a day")
}

func TestIngest_Duplicate(t *testing.T) {
	ctrl := gomock.NewController(t)
	issuer := mocks.NewMockVoucherIssuer(ctrl)

	r := &mockDailyStatsRepo{
		findByKey: func(_ context.Context, _ string, _ time.Time) (domain.DailyStatsRecord, error) {
			return domain.DailyStatsRecord{ID: uuid.New()}, nil
		},
	}

	_, err := newService(r, issuer).Ingest(context.Background(), validSubmission())

	p := requireProblem(t, err, domain.ErrDuplicate, "Duplicate statistics for date")
	assert.Equal(t, 409, p.Status)
	assert.Equal(t, "https://arianna.digit.srl/api/problems/duplicate", p.Type)
}

func TestIngest_SecondSubmissionForSameDayIsRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	issuer := mocks.NewMockVoucherIssuer(ctrl)
	issuer.EXPECT().RequestVouchers(gomock.Any(), gomock.Any()).Return(receipt(), nil).Times(1)

	svc := newService(newMemRepo(), issuer)

	_, err := svc.Ingest(context.Background(), validSubmission())
	require.NoError(t, err)

	second := validSubmission()
	second.TotalMinutesTracked = 60
	second.CentroidHash = "u4pruydqqvj"
	second.LocationTracking = &domain.LocationTracking{MinutesElsewhere: 60}

	_, err = svc.Ingest(context.Background(), second)

	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestIngest_DuplicateLookupError(t *testing.T) {
	ctrl := gomock.NewController(t)
	issuer := mocks.NewMockVoucherIssuer(ctrl)

	dbErr := errors.New("connection refused")
	r := &mockDailyStatsRepo{
		findByKey: func(_ context.Context, _ string, _ time.Time) (domain.DailyStatsRecord, error) {
			return domain.DailyStatsRecord{}, dbErr
		},
	}

	_, err := newService(r, issuer).Ingest(context.Background(), validSubmission())

	assert.ErrorIs(t, err, dbErr)
	var p *domain.Problem
	assert.False(t, errors.As(err, &p), "infrastructure failures are not problems")
}

func TestIngest_IssuanceFailureSkipsPersistence(t *testing.T) {
	ctrl := gomock.NewController(t)
	issuer := mocks.NewMockVoucherIssuer(ctrl)

	issuerErr := errors.New("registry unavailable")
	issuer.EXPECT().RequestVouchers(gomock.Any(), gomock.Any()).Return(domain.VoucherReceipt{}, issuerErr).Times(1)

	r := &mockDailyStatsRepo{
		findByKey: func(_ context.Context, _ string, _ time.Time) (domain.DailyStatsRecord, error) {
			return domain.DailyStatsRecord{}, domain.ErrNotFound
		},
		append: func(context.Context, domain.DailyStatsRecord) (domain.DailyStatsRecord, error) {
			t.Fatal("Append must not be called after a failed issuance")
			return domain.DailyStatsRecord{}, nil
		},
	}

	_, err := newService(r, issuer).Ingest(context.Background(), validSubmission())

	assert.ErrorIs(t, err, domain.ErrIssuance)
	assert.ErrorIs(t, err, issuerErr)
}

func TestIngest_PersistenceFailureAfterIssuance(t *testing.T) {
	ctrl := gomock.NewController(t)
	issuer := mocks.NewMockVoucherIssuer(ctrl)
	issuer.EXPECT().RequestVouchers(gomock.Any(), gomock.Any()).Return(receipt(), nil).Times(1)

	dbErr := errors.New("disk full")
	r := &mockDailyStatsRepo{
		findByKey: func(_ context.Context, _ string, _ time.Time) (domain.DailyStatsRecord, error) {
			return domain.DailyStatsRecord{}, domain.ErrNotFound
		},
		append: func(context.Context, domain.DailyStatsRecord) (domain.DailyStatsRecord, error) {
			return domain.DailyStatsRecord{}, dbErr
		},
	}

	got, err := newService(r, issuer).Ingest(context.Background(), validSubmission())

	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, domain.ErrIssuance)
	assert.Zero(t, got)
}

func TestIngest_InsertConflictIsDuplicate(t *testing.T) {
	ctrl := gomock.NewController(t)
	issuer := mocks.NewMockVoucherIssuer(ctrl)
	issuer.EXPECT().RequestVouchers(gomock.Any(), gomock.Any()).Return(receipt(), nil).Times(1)

	r := &mockDailyStatsRepo{
		findByKey: func(_ context.Context, _ string, _ time.Time) (domain.DailyStatsRecord, error) {
			return domain.DailyStatsRecord{}, domain.ErrNotFound
		},
		append: func(context.Context, domain.DailyStatsRecord) (domain.DailyStatsRecord, error) {
			return domain.DailyStatsRecord{}, domain.ErrDuplicate
		},
	}

	_, err := newService(r, issuer).Ingest(context.Background(), validSubmission())

	requireProblem(t, err, domain.ErrDuplicate, "Duplicate statistics for date")
}

func TestIngest_SeenCacheHitSkipsStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	issuer := mocks.NewMockVoucherIssuer(ctrl)

	cache := &mockSeenCache{
		seen: func(context.Context, string, time.Time) (bool, error) { return true, nil },
	}

	_, err := newService(untouchedRepo(t), issuer, service.WithSeenCache(cache)).
		Ingest(context.Background(), validSubmission())

	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestIngest_SeenCacheErrorFallsThroughAndMarks(t *testing.T) {
	ctrl := gomock.NewController(t)
	issuer := mocks.NewMockVoucherIssuer(ctrl)
	issuer.EXPECT().RequestVouchers(gomock.Any(), gomock.Any()).Return(receipt(), nil)

	cache := &mockSeenCache{
		seen: func(context.Context, string, time.Time) (bool, error) {
			return false, errors.New("redis timeout")
		},
		markErr: errors.New("redis timeout"),
	}

	_, err := newService(newMemRepo(), issuer, service.WithSeenCache(cache)).
		Ingest(context.Background(), validSubmission())

	require.NoError(t, err)
	sub := validSubmission()
	assert.Equal(t, []string{memKey(sub.InstallationID, sub.Date)}, cache.marked)
}

func TestIngest_CountsOutcomes(t *testing.T) {
	ctrl := gomock.NewController(t)
	issuer := mocks.NewMockVoucherIssuer(ctrl)
	issuer.EXPECT().RequestVouchers(gomock.Any(), gomock.Any()).Return(receipt(), nil)

	m := metrics.New(prometheus.NewRegistry())
	svc := newService(newMemRepo(), issuer, service.WithMetrics(m))

	_, err := svc.Ingest(context.Background(), validSubmission())
	require.NoError(t, err)
	_, _ = svc.Ingest(context.Background(), validSubmission())

	future := validSubmission()
	future.Date = fixedNow
	_, _ = svc.Ingest(context.Background(), future)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.Uploads.WithLabelValues(metrics.OutcomeAccepted)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Uploads.WithLabelValues(metrics.OutcomeDuplicate)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Uploads.WithLabelValues(metrics.OutcomeInvalidDate)))
	assert.Equal(t, 5.0, promtest.ToFloat64(m.Vouchers))
}
