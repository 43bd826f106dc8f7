package api

import (
	"log/slog"
	"net/http"

	"github.com/altafino/invoice-analyzer/internal/analysis"
	"github.com/altafino/invoice-analyzer/internal/progress"
	"github.com/labstack/echo/v4"
)

// AnalyzeRequest is the POST /api/pdf/analyze body.
type AnalyzeRequest struct {
	Provider     string   `json:"provider"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	EmailIDs     []string `json:"email_ids"`
	SessionID    string   `json:"session_id,omitempty"`
}

// AnalyzeResponse identifies the started job.
type AnalyzeResponse struct {
	JobID     string `json:"job_id"`
	SessionID string `json:"session_id"`
}

// AnalysisHandler starts analysis jobs and serves their progress and
// results to polling clients.
type AnalysisHandler struct {
	service *analysis.Service
	tracker *progress.Tracker
	logger  *slog.Logger
}

func NewAnalysisHandler(service *analysis.Service, tracker *progress.Tracker, logger *slog.Logger) AnalysisHandler {
	return AnalysisHandler{service: service, tracker: tracker, logger: logger}
}

// HandleAnalyze starts a job over the selected emails and returns 202 with
// the job id right away; the client polls progress from there.
func (h AnalysisHandler) HandleAnalyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if len(req.EmailIDs) == 0 {
		return NewBadRequestError("email_ids must not be empty", nil)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = c.Request().Header.Get("X-Session-ID")
	}

	jobID, err := h.service.Analyze(c.Request().Context(), analysis.Request{
		Provider:   req.Provider,
		Credential: requestCredential(c, req.AccessToken, req.RefreshToken),
		EmailIDs:   req.EmailIDs,
		SessionID:  sessionID,
	})
	if err != nil {
		return err
	}

	if sessionID == "" {
		sessionID = jobID
	}
	return c.JSON(http.StatusAccepted, AnalyzeResponse{JobID: jobID, SessionID: sessionID})
}

// HandleProgress returns the job's progress snapshot. Unknown jobs read as
// pending so a client that polls before the job record lands sees a
// consistent shape.
func (h AnalysisHandler) HandleProgress(c echo.Context) error {
	jobID := c.Param("jobID")
	if jobID == "" {
		return NewBadRequestError("job id is required", nil)
	}
	return c.JSON(http.StatusOK, h.tracker.Snapshot(jobID))
}

// HandleResult returns the aggregated result snapshot, valid at any point
// of the job's life.
func (h AnalysisHandler) HandleResult(c echo.Context) error {
	jobID := c.Param("jobID")
	if jobID == "" {
		return NewBadRequestError("job id is required", nil)
	}

	result, ok := h.service.Result(jobID)
	if !ok {
		return NewNotFoundError("job", jobID)
	}
	return c.JSON(http.StatusOK, result)
}
