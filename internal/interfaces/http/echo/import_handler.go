package echo

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	app "github.com/mohammadpnp/tabular-import/internal/application/importing"
	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

const HeaderOperatorID = "X-Operator-ID"

// ImportUseCases groups the use cases behind the import endpoints.
type ImportUseCases struct {
	Upload        app.UploadImport
	SaveMapping   app.SaveImportMapping
	Validate      app.ValidateImport
	SaveMatches   app.SaveManualMatches
	Execute       app.ExecuteImport
	Discard       app.DiscardImport
	Get           app.GetImport
	GetSummary    app.GetImportSummary
	ListTargets   app.ListImportTargets
	MaxUploadSize int64
}

type ImportHandler struct {
	uc ImportUseCases
}

type uploadImportRequest struct {
	EntityType string `json:"entity_type" form:"entity_type" validate:"required"`
	SourcePath string `json:"source_path" form:"source_path"`
}

type mappingItem struct {
	TargetField  string `json:"target_field" validate:"required"`
	SourceColumn string `json:"source_column"`
}

type saveMappingRequest struct {
	Mappings []mappingItem `json:"mappings" validate:"required,dive"`
}

type validateImportRequest struct {
	Defaults      map[string]string    `json:"defaults"`
	ManualMatches domain.ManualMatches `json:"manual_matches"`
}

type saveMatchesRequest struct {
	ManualMatches domain.ManualMatches `json:"manual_matches" validate:"required"`
}

type executeImportRequest struct {
	UpdateExisting bool                 `json:"update_existing"`
	Defaults       map[string]string    `json:"defaults"`
	ManualMatches  domain.ManualMatches `json:"manual_matches"`
}

func NewImportHandler(uc ImportUseCases) *ImportHandler {
	return &ImportHandler{uc: uc}
}

func operator(c echo.Context) string {
	return strings.TrimSpace(c.Request().Header.Get(HeaderOperatorID))
}

func (h *ImportHandler) ListTargets(c echo.Context) error {
	out, err := h.uc.ListTargets.Execute(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

// Upload accepts either a multipart form with a file part or a JSON body
// naming a file in the server-side import directory.
func (h *ImportHandler) Upload(c echo.Context) error {
	var req uploadImportRequest
	in := app.UploadImportInput{Operator: operator(c)}

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		req.EntityType = c.FormValue("entity_type")
		fileHeader, err := c.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return tooLarge(c)
			}
			return badRequest(c, "multipart field \"file\" is required")
		}
		if h.uc.MaxUploadSize > 0 && fileHeader.Size > h.uc.MaxUploadSize {
			return tooLarge(c)
		}
		file, err := fileHeader.Open()
		if err != nil {
			return badRequest(c, "cannot read uploaded file")
		}
		defer file.Close()

		in.Filename = fileHeader.Filename
		in.ContentType = fileHeader.Header.Get(echo.HeaderContentType)
		in.Content = file
	} else {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		if strings.TrimSpace(req.SourcePath) == "" {
			return badRequest(c, "source_path is required without a file upload")
		}
		in.SourcePath = req.SourcePath
	}

	if err := c.Validate(&req); err != nil {
		return badRequest(c, "entity_type is required")
	}
	in.EntityType = domain.EntityType(req.EntityType)

	out, err := h.uc.Upload.Execute(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, apiResponse{Data: out})
}

func (h *ImportHandler) Get(c echo.Context) error {
	out, err := h.uc.Get.Execute(c.Request().Context(), app.GetImportInput{
		Operator: operator(c),
		ImportID: c.Param("id"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) SaveMapping(c echo.Context) error {
	var req saveMappingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "mappings must list target_field/source_column pairs")
	}

	pairs := make([]domain.ColumnMapping, 0, len(req.Mappings))
	for _, item := range req.Mappings {
		pairs = append(pairs, domain.ColumnMapping{TargetField: item.TargetField, SourceColumn: item.SourceColumn})
	}
	out, err := h.uc.SaveMapping.Execute(c.Request().Context(), app.SaveImportMappingInput{
		Operator: operator(c),
		ImportID: c.Param("id"),
		Mappings: pairs,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) Validate(c echo.Context) error {
	var req validateImportRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	out, err := h.uc.Validate.Execute(c.Request().Context(), app.ValidateImportInput{
		Operator:      operator(c),
		ImportID:      c.Param("id"),
		Defaults:      req.Defaults,
		ManualMatches: req.ManualMatches,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) SaveMatches(c echo.Context) error {
	var req saveMatchesRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "manual_matches is required")
	}

	out, err := h.uc.SaveMatches.Execute(c.Request().Context(), app.SaveManualMatchesInput{
		Operator:      operator(c),
		ImportID:      c.Param("id"),
		ManualMatches: req.ManualMatches,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

// Execute returns the summary even when the run was cancelled part way, so
// the operator can see which rows took effect.
func (h *ImportHandler) Execute(c echo.Context) error {
	var req executeImportRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	summary, err := h.uc.Execute.Execute(c.Request().Context(), app.ExecuteImportInput{
		Operator:       operator(c),
		ImportID:       c.Param("id"),
		UpdateExisting: req.UpdateExisting,
		Defaults:       req.Defaults,
		ManualMatches:  req.ManualMatches,
	})
	if errors.Is(err, app.ErrExecutionCancelled) {
		return c.JSON(http.StatusServiceUnavailable, apiResponse{
			Data:  summary,
			Error: &errorBody{Code: "cancelled", Message: err.Error()},
		})
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: summary})
}

func (h *ImportHandler) Discard(c echo.Context) error {
	out, err := h.uc.Discard.Execute(c.Request().Context(), app.DiscardImportInput{
		Operator: operator(c),
		ImportID: c.Param("id"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) Summary(c echo.Context) error {
	summary, err := h.uc.GetSummary.Execute(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: summary})
}

func tooLarge(c echo.Context) error {
	return c.JSON(http.StatusRequestEntityTooLarge, apiResponse{Error: &errorBody{
		Code:    "file_too_large",
		Message: "uploaded file is too large",
	}})
}
