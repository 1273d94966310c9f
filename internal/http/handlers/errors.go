package handlers

import (
	"errors"

	"gorm.io/gorm"

	"github.com/jmylchreest/corpusctl/internal/corpuserrors"
)

// taxonomyErrorBody is the canonical error envelope spec.md §7 mandates
// for every Control API error response: a human detail, the stable
// taxonomy code, and actionable context hints. It implements huma's
// StatusError interface (Error() + GetStatus()) and is returned directly
// from handlers, so huma serializes exactly these three fields as the
// response body instead of its own default ErrorModel shape.
type taxonomyErrorBody struct {
	status  int
	Detail  string         `json:"detail"`
	Code    string         `json:"code"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *taxonomyErrorBody) Error() string  { return e.Detail }
func (e *taxonomyErrorBody) GetStatus() int { return e.status }

// apiError maps the catalog/pipeline error taxonomy and gorm's not-found
// sentinel onto the canonical {detail, code, context} envelope, so
// handlers can return domain errors directly instead of hand-rolling a
// status code and losing the taxonomy's machine-readable code/context.
func apiError(detail string, err error) error {
	var taxErr *corpuserrors.TaxonomyError
	if errors.As(err, &taxErr) {
		return &taxonomyErrorBody{
			status:  taxErr.HTTPStatus(),
			Detail:  taxErr.Detail(),
			Code:    taxErr.Code(),
			Context: taxErr.Context(),
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &taxonomyErrorBody{
			status: 404,
			Detail: detail,
			Code:   string(corpuserrors.KindNotFound),
		}
	}
	return &taxonomyErrorBody{
		status: 500,
		Detail: detail,
		Code:   "Internal",
	}
}
