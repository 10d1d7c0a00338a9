// Package domain contains the core data types for the daily stats collector.
// This package has no dependencies on other internal packages and is imported
// by every one of them (repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MinutesInDay bounds every per-day minute counter.
const MinutesInDay = 24 * 60

// VoucherAim is the aim code attached to every voucher batch this service requests.
const VoucherAim = "HE"

// MinDate is the earliest day a device may report statistics for.
var MinDate = time.Date(2020, time.April, 2, 0, 0, 0, 0, time.UTC)

// DailyStatsSubmission is one device's summary of a single tracked day, as
// received from the app. It is transient: built from the request and dropped
// once the upload has been answered.
type DailyStatsSubmission struct {
	InstallationID       string
	Date                 time.Time
	TotalMinutesTracked  int
	CentroidHash         string
	LocationCount        int
	VehicleCount         int
	EventCount           int
	SampleCount          int
	DiscardedSampleCount int
	BoundingBoxDiagonal  float64

	// LocationTracking is nil when the app did not send the section.
	LocationTracking *LocationTracking
}

// LocationTracking splits the tracked minutes by kind of place.
type LocationTracking struct {
	MinutesAtHome                int
	MinutesAtWork                int
	MinutesAtSchool              int
	MinutesAtOtherKnownLocations int
	MinutesElsewhere             int
}

// Exceeds reports whether the components add up to more than limit.
// The sum is accumulated against limit so large values cannot wrap it.
// Components must be non-negative; check HasNegative first.
func (l LocationTracking) Exceeds(limit int) bool {
	total := 0
	for _, v := range []int{
		l.MinutesAtHome,
		l.MinutesAtWork,
		l.MinutesAtSchool,
		l.MinutesAtOtherKnownLocations,
		l.MinutesElsewhere,
	} {
		if v > limit-total {
			return true
		}
		total += v
	}
	return false
}

// HasNegative reports whether any component is below zero.
func (l LocationTracking) HasNegative() bool {
	return l.MinutesAtHome < 0 ||
		l.MinutesAtWork < 0 ||
		l.MinutesAtSchool < 0 ||
		l.MinutesAtOtherKnownLocations < 0 ||
		l.MinutesElsewhere < 0
}

// GeoCoordinate is a point in decimal degrees.
type GeoCoordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DailyStatsRecord is the persisted form of an accepted submission.
// There is at most one record per (InstallationID, Date); records are never
// updated or deleted by this service.
type DailyStatsRecord struct {
	ID                   uuid.UUID
	InstallationID       string
	Date                 time.Time // always midnight UTC
	TotalMinutesTracked  int
	TotalVouchersEarned  int
	Centroid             GeoCoordinate
	LocationCount        int
	VehicleCount         int
	EventCount           int
	SampleCount          int
	DiscardedSampleCount int
	BoundingBoxDiagonal  float64
	LocationTracking     LocationTracking
	CreatedAt            time.Time
}

// VoucherRequest describes one batch of vouchers to be issued.
type VoucherRequest struct {
	Aim       string
	Count     int
	Latitude  float64
	Longitude float64
	Timestamp time.Time
}

// VoucherReceipt is what the issuer hands back: a link the user opens and the
// password that unlocks it.
type VoucherReceipt struct {
	Link     string
	Password string
}

// UploadConfirmation is returned to the device after an accepted upload.
type UploadConfirmation struct {
	WomLink     string
	WomPassword string
	WomCount    int
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the instant vouchers for day d are stamped with:
// 23.999 hours after midnight.
func EndOfDay(d time.Time) time.Time {
	return DateOnly(d).Add(23*time.Hour + 59*time.Minute + 56*time.Second + 400*time.Millisecond)
}
