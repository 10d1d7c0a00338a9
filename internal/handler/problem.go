package handler

import (
	"encoding/json"
	"net/http"

	"github.com/digit-srl/diarycollector/internal/domain"
)

// problemBody is the application/problem+json rendering of a domain.Problem.
type problemBody struct {
	Type   string              `json:"type,omitempty"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func writeProblem(w http.ResponseWriter, p *domain.Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(problemBody{
		Type:   p.Type,
		Title:  p.Title,
		Status: p.Status,
		Detail: p.Detail,
		Errors: p.Errors,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
