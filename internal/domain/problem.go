package domain

import "net/http"

const problemTypeBase = "https://arianna.digit.srl/api/problems/"

// Problem type identifiers. Clients match on these; do not rename.
const (
	ProblemTypeInvalidSchema = "https://tools.ietf.org/html/rfc7231#section-6.5.1"
	ProblemTypeInvalidDate   = problemTypeBase + "invalid-date"
	ProblemTypeInvalidData   = problemTypeBase + "invalid-data"
	ProblemTypeDuplicate     = problemTypeBase + "duplicate"
)

// Problem is a classified rejection of an upload. It doubles as an error so it
// can travel up from the service unchanged and be rendered as
// application/problem+json by the handler.
type Problem struct {
	Status int
	Type   string
	Title  string
	Detail string

	// Errors maps a field name to its messages. Only set for schema problems.
	Errors map[string][]string

	kind error
}

func (p *Problem) Error() string {
	kind := "rejected"
	if p.kind != nil {
		kind = p.kind.Error()
	}
	if p.Detail != "" {
		return kind + ": " + p.Title + ": " + p.Detail
	}
	return kind + ": " + p.Title
}

// Unwrap exposes the rejection kind (ErrInvalidDate, ErrDuplicate, ...).
func (p *Problem) Unwrap() error {
	return p.kind
}

// SchemaProblem reports missing or malformed fields.
func SchemaProblem(fields map[string][]string) *Problem {
	return &Problem{
		Status: http.StatusBadRequest,
		Type:   ProblemTypeInvalidSchema,
		Title:  "One or more validation errors occurred.",
		Errors: fields,
		kind:   ErrInvalidSchema,
	}
}

// InvalidDateProblem reports a date outside the accepted window.
func InvalidDateProblem(title string) *Problem {
	return &Problem{
		Status: http.StatusUnprocessableEntity,
		Type:   ProblemTypeInvalidDate,
		Title:  title,
		kind:   ErrInvalidDate,
	}
}

// InvalidDataProblem reports a value that breaks a business rule.
// detail may be empty.
func InvalidDataProblem(title, detail string) *Problem {
	return &Problem{
		Status: http.StatusUnprocessableEntity,
		Type:   ProblemTypeInvalidData,
		Title:  title,
		Detail: detail,
		kind:   ErrInvalidData,
	}
}

// DuplicateProblem reports a second upload for the same installation and day.
func DuplicateProblem() *Problem {
	return &Problem{
		Status: http.StatusConflict,
		Type:   ProblemTypeDuplicate,
		Title:  "Duplicate statistics for date",
		kind:   ErrDuplicate,
	}
}
