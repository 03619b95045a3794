package bootstrap

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	app "github.com/mohammadpnp/tabular-import/internal/application/importing"
	"github.com/mohammadpnp/tabular-import/internal/config"
	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
	httpecho "github.com/mohammadpnp/tabular-import/internal/interfaces/http/echo"
)

// Dependencies are the collaborators the import use cases are built from.
type Dependencies struct {
	Registry *domain.Registry
	Pipeline *app.Pipeline
	Parser   app.TableParser
	Source   app.ImportSource
	Runs     domain.RunRepository
}

func NewHTTPServer(cfg config.Config, logger logrus.FieldLogger, deps Dependencies) *echo.Echo {
	server := echo.New()
	server.HideBanner = true
	server.HidePort = true

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency,
				"request_id": v.RequestID,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request failed")
				return nil
			}
			entry.Debug("request")
			return nil
		},
	}))
	server.Use(middleware.BodyLimit(cfg.MaxUploadLimit()))

	importHandler := httpecho.NewImportHandler(httpecho.ImportUseCases{
		Upload:        app.NewUploadImport(deps.Pipeline, deps.Parser, deps.Source),
		SaveMapping:   app.NewSaveImportMapping(deps.Pipeline),
		Validate:      app.NewValidateImport(deps.Pipeline),
		SaveMatches:   app.NewSaveManualMatches(deps.Pipeline),
		Execute:       app.NewExecuteImport(deps.Pipeline),
		Discard:       app.NewDiscardImport(deps.Pipeline),
		Get:           app.NewGetImport(deps.Pipeline),
		GetSummary:    app.NewGetImportSummary(deps.Runs),
		ListTargets:   app.NewListImportTargets(deps.Registry),
		MaxUploadSize: cfg.Import.MaxUploadSize,
	})
	httpecho.RegisterRoutes(server, importHandler)

	server.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	server.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.Handler()))

	return server
}
