package echo

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	app "github.com/mohammadpnp/tabular-import/internal/application/importing"
	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type apiResponse struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

// RequestValidator plugs go-playground/validator into echo's c.Validate.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

func (v *RequestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
		Code:    "bad_request",
		Message: message,
	}})
}

// writeError maps structural errors onto status codes. Anything unknown is
// reported as an internal error without leaking its text.
func writeError(c echo.Context, err error) error {
	status, body := classifyError(err)
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("import request failed: %v", err)
	}
	return c.JSON(status, apiResponse{Error: body})
}

func classifyError(err error) (int, *errorBody) {
	var mappingErr *domain.InvalidMappingError
	switch {
	case errors.As(err, &mappingErr):
		return http.StatusUnprocessableEntity, &errorBody{Code: "invalid_mapping", Message: "mapping is invalid", Details: mappingErr.Problems}
	case errors.Is(err, domain.ErrInvalidManualMatch):
		return http.StatusUnprocessableEntity, &errorBody{Code: "invalid_manual_match", Message: err.Error()}
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, &errorBody{Code: "not_found", Message: "import session not found"}
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound, &errorBody{Code: "not_found", Message: "import summary not found"}
	case errors.Is(err, domain.ErrSessionForbidden):
		return http.StatusForbidden, &errorBody{Code: "forbidden", Message: "import session belongs to another operator"}
	case errors.Is(err, domain.ErrSessionAlreadyExecuted):
		return http.StatusConflict, &errorBody{Code: "already_executed", Message: "import session already executed"}
	case errors.Is(err, domain.ErrSessionNotMapped):
		return http.StatusConflict, &errorBody{Code: "not_mapped", Message: "save a mapping before validating or executing"}
	case errors.Is(err, app.ErrManualMatchesNotRetained):
		return http.StatusConflict, &errorBody{Code: "matches_not_retained", Message: err.Error()}
	case errors.Is(err, domain.ErrUnknownEntityType):
		return http.StatusBadRequest, &errorBody{Code: "unknown_entity_type", Message: err.Error()}
	case errors.Is(err, domain.ErrMalformedFile):
		return http.StatusBadRequest, &errorBody{Code: "malformed_file", Message: err.Error()}
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusBadRequest, &errorBody{Code: "unsupported_format", Message: err.Error()}
	case errors.Is(err, app.ErrInvalidImportSource):
		return http.StatusBadRequest, &errorBody{Code: "invalid_source", Message: "source_path must name a .csv, .tsv or .xlsx file in the import directory"}
	case errors.Is(err, app.ErrLookupFailed):
		return http.StatusInternalServerError, &errorBody{Code: "lookup_failed", Message: "reference lookup failed, nothing was imported"}
	default:
		return http.StatusInternalServerError, &errorBody{Code: "internal_error", Message: "import request failed"}
	}
}
