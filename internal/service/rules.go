package service

import (
	"math"
	"strings"
	"time"

	"github.com/digit-srl/diarycollector/internal/domain"
	"github.com/digit-srl/diarycollector/internal/geohash"
)

// candidate is a submission under validation. Rules may fill in derived
// values (the decoded centroid) for later rules and for the pipeline.
type candidate struct {
	sub      domain.DailyStatsSubmission
	today    time.Time
	centroid domain.GeoCoordinate
}

// rule inspects a candidate and returns a problem, or nil when satisfied.
type rule struct {
	name  string
	check func(c *candidate) *domain.Problem
}

// submissionRules run in this exact order and stop at the first problem.
// Clients depend on which problem wins when several apply, so the order is
// part of the API.
var submissionRules = []rule{
	{"shape", checkShape},
	{"min_date", func(c *candidate) *domain.Problem {
		if c.sub.Date.Before(domain.MinDate) {
			return domain.InvalidDateProblem("Unacceptable date (out of valid range)")
		}
		return nil
	}},
	{"total_minutes", func(c *candidate) *domain.Problem {
		if c.sub.TotalMinutesTracked > domain.MinutesInDay {
			return domain.InvalidDataProblem("Total minutes tracked exceeds minutes in a day", "")
		}
		return nil
	}},
	{"elapsed_day", func(c *candidate) *domain.Problem {
		if !c.sub.Date.Before(c.today) {
			return domain.InvalidDateProblem("Unacceptable date (future date)")
		}
		return nil
	}},
	{"centroid", func(c *candidate) *domain.Problem {
		lat, lon, err := geohash.Decode(c.sub.CentroidHash)
		if err != nil {
			return domain.InvalidDataProblem("Cannot decode geohash", err.Error())
		}
		c.centroid = domain.GeoCoordinate{Latitude: lat, Longitude: lon}
		return nil
	}},
	{"location_tracking_present", func(c *candidate) *domain.Problem {
		if c.sub.LocationTracking == nil {
			return domain.InvalidDataProblem("Payload does not contain location tracking section", "")
		}
		return nil
	}},
	{"location_tracking_non_negative", func(c *candidate) *domain.Problem {
		if c.sub.LocationTracking.HasNegative() {
			return domain.InvalidDataProblem("Negative location tracking value", "")
		}
		return nil
	}},
	{"location_tracking_total", func(c *candidate) *domain.Problem {
		if c.sub.LocationTracking.Exceeds(domain.MinutesInDay) {
			return domain.InvalidDataProblem("Total minutes in location tracking exceeds minutes in a day", "")
		}
		return nil
	}},
}

// checkShape rejects submissions missing required fields or carrying counters
// that are negative or do not fit the 32-bit storage columns. The HTTP layer reports most of these while decoding; this covers
// callers that build submissions directly.
func checkShape(c *candidate) *domain.Problem {
	s := c.sub
	fields := map[string][]string{}
	if strings.TrimSpace(s.InstallationID) == "" {
		fields["installationId"] = append(fields["installationId"], "The InstallationId field is required.")
	}
	if s.Date.IsZero() {
		fields["date"] = append(fields["date"], "The Date field is required.")
	}
	if strings.TrimSpace(s.CentroidHash) == "" {
		fields["centroidHash"] = append(fields["centroidHash"], "The CentroidHash field is required.")
	}
	for name, v := range map[string]int{
		"totalMinutesTracked":  s.TotalMinutesTracked,
		"locationCount":        s.LocationCount,
		"vehicleCount":         s.VehicleCount,
		"eventCount":           s.EventCount,
		"sampleCount":          s.SampleCount,
		"discardedSampleCount": s.DiscardedSampleCount,
	} {
		switch {
		case v < 0:
			fields[name] = append(fields[name], "The value must not be negative.")
		case v > math.MaxInt32:
			fields[name] = append(fields[name], "The value is too large.")
		}
	}
	if len(fields) > 0 {
		return domain.SchemaProblem(fields)
	}
	return nil
}

// validate runs submissionRules against sub, comparing calendar days in UTC.
// On success it returns the decoded centroid; on failure the name of the
// violated rule and its problem.
func validate(sub domain.DailyStatsSubmission, now time.Time) (domain.GeoCoordinate, string, *domain.Problem) {
	sub.Date = domain.DateOnly(sub.Date)
	c := &candidate{sub: sub, today: domain.DateOnly(now)}
	for _, r := range submissionRules {
		if p := r.check(c); p != nil {
			return domain.GeoCoordinate{}, r.name, p
		}
	}
	return c.centroid, "", nil
}

// Validate checks sub against the submission rules as of now and returns the
// decoded centroid. A rejection is returned as a *domain.Problem.
func Validate(sub domain.DailyStatsSubmission, now time.Time) (domain.GeoCoordinate, error) {
	centroid, _, problem := validate(sub, now)
	if problem != nil {
		return domain.GeoCoordinate{}, problem
	}
	return centroid, nil
}
