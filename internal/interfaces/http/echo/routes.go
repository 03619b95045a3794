package echo

import e "github.com/labstack/echo/v4"

func RegisterRoutes(server *e.Echo, importHandler *ImportHandler) {
	if server.Validator == nil {
		server.Validator = NewRequestValidator()
	}

	imports := server.Group("/api/v1/imports")
	imports.GET("/entities", importHandler.ListTargets)
	imports.POST("", importHandler.Upload)
	imports.GET("/:id", importHandler.Get)
	imports.DELETE("/:id", importHandler.Discard)
	imports.POST("/:id/mapping", importHandler.SaveMapping)
	imports.POST("/:id/validate", importHandler.Validate)
	imports.POST("/:id/matches", importHandler.SaveMatches)
	imports.POST("/:id/execute", importHandler.Execute)
	imports.GET("/:id/summary", importHandler.Summary)
}
