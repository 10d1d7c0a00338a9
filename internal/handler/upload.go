package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/digit-srl/diarycollector/internal/domain"
)

// uploadRequest is the JSON body of POST /api/upload. Pointer fields tell a
// missing value apart from zero. Counters are 32-bit like the storage columns,
// so out-of-range values fail decoding with a field error.
type uploadRequest struct {
	InstallationID       *string                  `json:"installationId"`
	Date                 *openapi_types.Date      `json:"date"`
	TotalMinutesTracked  *int32                   `json:"totalMinutesTracked"`
	CentroidHash         *string                  `json:"centroidHash"`
	LocationCount        int32                    `json:"locationCount"`
	VehicleCount         int32                    `json:"vehicleCount"`
	EventCount           int32                    `json:"eventCount"`
	SampleCount          int32                    `json:"sampleCount"`
	DiscardedSampleCount int32                    `json:"discardedSampleCount"`
	BoundingBoxDiagonal  float64                  `json:"boundingBoxDiagonal"`
	LocationTracking     *locationTrackingRequest `json:"locationTracking"`
}

type locationTrackingRequest struct {
	MinutesAtHome                int32 `json:"minutesAtHome"`
	MinutesAtWork                int32 `json:"minutesAtWork"`
	MinutesAtSchool              int32 `json:"minutesAtSchool"`
	MinutesAtOtherKnownLocations int32 `json:"minutesAtOtherKnownLocations"`
	MinutesElsewhere             int32 `json:"minutesElsewhere"`
}

type uploadResponse struct {
	WomLink     string `json:"womLink"`
	WomPassword string `json:"womPassword"`
	WomCount    int    `json:"womCount"`
}

// Upload handles POST /api/upload.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeProblem(w, domain.SchemaProblem(decodeErrorFields(err)))
		return
	}

	sub, fields := requestToSubmission(req)
	if len(fields) > 0 {
		writeProblem(w, domain.SchemaProblem(fields))
		return
	}

	conf, err := s.ingest.Ingest(r.Context(), sub)
	if err != nil {
		var p *domain.Problem
		switch {
		case errors.As(err, &p):
			writeProblem(w, p)
		case errors.Is(err, domain.ErrIssuance):
			s.logger.ErrorContext(r.Context(), "upload failed", "error", err)
			writeProblem(w, &domain.Problem{
				Status: http.StatusBadGateway,
				Title:  "Voucher generation failed",
			})
		default:
			s.logger.ErrorContext(r.Context(), "upload failed", "error", err)
			writeProblem(w, &domain.Problem{
				Status: http.StatusInternalServerError,
				Title:  "Internal server error",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		WomLink:     conf.WomLink,
		WomPassword: conf.WomPassword,
		WomCount:    conf.WomCount,
	})
}

// requestToSubmission converts the wire body to a domain submission and lists
// the required fields that are missing.
func requestToSubmission(req uploadRequest) (domain.DailyStatsSubmission, map[string][]string) {
	fields := map[string][]string{}
	required := func(name, label string, present bool) {
		if !present {
			fields[name] = append(fields[name], "The "+label+" field is required.")
		}
	}
	required("installationId", "InstallationId", req.InstallationID != nil && strings.TrimSpace(*req.InstallationID) != "")
	required("date", "Date", req.Date != nil)
	required("totalMinutesTracked", "TotalMinutesTracked", req.TotalMinutesTracked != nil)
	required("centroidHash", "CentroidHash", req.CentroidHash != nil && strings.TrimSpace(*req.CentroidHash) != "")
	if len(fields) > 0 {
		return domain.DailyStatsSubmission{}, fields
	}

	sub := domain.DailyStatsSubmission{
		InstallationID:       *req.InstallationID,
		Date:                 req.Date.Time,
		TotalMinutesTracked:  int(*req.TotalMinutesTracked),
		CentroidHash:         *req.CentroidHash,
		LocationCount:        int(req.LocationCount),
		VehicleCount:         int(req.VehicleCount),
		EventCount:           int(req.EventCount),
		SampleCount:          int(req.SampleCount),
		DiscardedSampleCount: int(req.DiscardedSampleCount),
		BoundingBoxDiagonal:  req.BoundingBoxDiagonal,
	}
	if lt := req.LocationTracking; lt != nil {
		sub.LocationTracking = &domain.LocationTracking{
			MinutesAtHome:                int(lt.MinutesAtHome),
			MinutesAtWork:                int(lt.MinutesAtWork),
			MinutesAtSchool:              int(lt.MinutesAtSchool),
			MinutesAtOtherKnownLocations: int(lt.MinutesAtOtherKnownLocations),
			MinutesElsewhere:             int(lt.MinutesElsewhere),
		}
	}
	return sub, nil
}

// decodeErrorFields turns a JSON decode failure into a field error map.
// Errors that cannot be tied to a field are reported under "$".
func decodeErrorFields(err error) map[string][]string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return map[string][]string{
			typeErr.Field: {"The value is not a valid " + typeErr.Type.String() + "."},
		}
	}
	var dateErr *time.ParseError
	if errors.As(err, &dateErr) {
		return map[string][]string{"date": {"The value is not a valid date (YYYY-MM-DD)."}}
	}
	if errors.Is(err, io.EOF) {
		return map[string][]string{"$": {"A non-empty request body is required."}}
	}
	return map[string][]string{"$": {err.Error()}}
}
