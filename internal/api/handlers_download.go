package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/altafino/invoice-analyzer/internal/artifact"
	"github.com/labstack/echo/v4"
)

// DownloadHandler serves a session's stored PDFs as one ZIP.
type DownloadHandler struct {
	store  artifact.Store
	logger *slog.Logger
}

func NewDownloadHandler(store artifact.Store, logger *slog.Logger) DownloadHandler {
	return DownloadHandler{store: store, logger: logger}
}

func (h DownloadHandler) HandleDownload(c echo.Context) error {
	sessionID := c.Param("sessionID")
	if sessionID == "" {
		return NewBadRequestError("session id is required", nil)
	}

	data, err := h.store.Archive(sessionID)
	if err != nil {
		return NewNotFoundError("session", sessionID)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="invoices-%s.zip"`, sessionID))
	return c.Blob(http.StatusOK, "application/zip", data)
}
