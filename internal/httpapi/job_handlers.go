package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/translator/internal/batch"
	"horse.fit/translator/internal/db"
)

type submitJobRequest struct {
	ContentType  string  `json:"contentType"`
	SourceLocale string  `json:"sourceLocale"`
	TargetLocale string  `json:"targetLocale"`
	EntityIDs    []int64 `json:"entityIds"`
	AutoPublish  bool    `json:"autoPublish"`
}

type jobResponse struct {
	ID            string            `json:"id"`
	ContentType   string            `json:"contentType"`
	SourceLocale  string            `json:"sourceLocale"`
	TargetLocale  string            `json:"targetLocale"`
	EntityIDs     []int64           `json:"entityIds,omitempty"`
	AutoPublish   bool              `json:"autoPublish"`
	Status        string            `json:"status"`
	Progress      float64           `json:"progress"`
	FailureReason *db.FailureReason `json:"failureReason,omitempty"`
	Running       bool              `json:"running"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

func (s *Server) buildJobResponse(record *db.BatchTranslateJob) (jobResponse, error) {
	ids, err := record.EntityIDList()
	if err != nil {
		return jobResponse{}, err
	}
	failure, err := record.Failure()
	if err != nil {
		return jobResponse{}, err
	}
	return jobResponse{
		ID:            record.JobUUID,
		ContentType:   record.ContentType,
		SourceLocale:  record.SourceLocale,
		TargetLocale:  record.TargetLocale,
		EntityIDs:     ids,
		AutoPublish:   record.AutoPublish,
		Status:        record.Status,
		Progress:      record.Progress,
		FailureReason: failure,
		Running:       s.svc.Jobs.IsRunning(record.JobUUID),
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}, nil
}

func (s *Server) handleSubmitJob(c echo.Context) error {
	var req submitJobRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	fieldErrors := map[string]string{}
	if strings.TrimSpace(req.ContentType) == "" {
		fieldErrors["contentType"] = "is required"
	}
	if strings.TrimSpace(req.SourceLocale) == "" {
		fieldErrors["sourceLocale"] = "is required"
	}
	if strings.TrimSpace(req.TargetLocale) == "" {
		fieldErrors["targetLocale"] = "is required"
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	record, err := s.svc.Jobs.SubmitJob(c.Request().Context(), batch.SubmitParams{
		ContentType:  req.ContentType,
		SourceLocale: req.SourceLocale,
		TargetLocale: req.TargetLocale,
		EntityIDs:    req.EntityIDs,
		AutoPublish:  req.AutoPublish,
	})
	if err != nil {
		return s.respondError(c, err, "Failed to start batch translation")
	}

	resp, err := s.buildJobResponse(record)
	if err != nil {
		return s.respondError(c, err, "Failed to load job")
	}
	return successWithStatus(c, http.StatusAccepted, resp)
}

func (s *Server) handleListJobs(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	filter := db.JobFilter{
		ContentType: strings.TrimSpace(c.QueryParam("content_type")),
		NewestFirst: true,
		Limit:       limit,
	}
	if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
		status, err := batch.ParseStatus(raw)
		if err != nil {
			return failValidation(c, map[string]string{"status": err.Error()})
		}
		filter.Statuses = []string{status.String()}
	}

	records, err := s.svc.Jobs.ListJobs(c.Request().Context(), filter)
	if err != nil {
		return s.respondError(c, err, "Failed to load jobs")
	}
	items := make([]jobResponse, 0, len(records))
	for i := range records {
		item, err := s.buildJobResponse(&records[i])
		if err != nil {
			return s.respondError(c, err, "Failed to load jobs")
		}
		items = append(items, item)
	}
	return success(c, map[string]any{
		"items": items,
		"limit": limit,
	})
}

func (s *Server) handleGetJob(c echo.Context) error {
	return s.respondWithJob(c, strings.TrimSpace(c.Param("job_uuid")))
}

func (s *Server) handlePauseJob(c echo.Context) error {
	jobID := strings.TrimSpace(c.Param("job_uuid"))
	if err := s.svc.Jobs.PauseJob(c.Request().Context(), jobID); err != nil {
		return s.respondError(c, err, "Failed to pause job")
	}
	return s.respondWithJob(c, jobID)
}

func (s *Server) handleCancelJob(c echo.Context) error {
	jobID := strings.TrimSpace(c.Param("job_uuid"))
	if err := s.svc.Jobs.CancelJob(c.Request().Context(), jobID); err != nil {
		return s.respondError(c, err, "Failed to cancel job")
	}
	return s.respondWithJob(c, jobID)
}

func (s *Server) handleResumeJob(c echo.Context) error {
	jobID := strings.TrimSpace(c.Param("job_uuid"))
	if _, err := s.svc.Jobs.ResumeJob(c.Request().Context(), jobID); err != nil {
		return s.respondError(c, err, "Failed to resume job")
	}
	return s.respondWithJob(c, jobID)
}

func (s *Server) respondWithJob(c echo.Context, jobID string) error {
	record, err := s.svc.Jobs.GetJob(c.Request().Context(), jobID)
	if err != nil {
		return s.respondError(c, err, "Failed to load job")
	}
	resp, err := s.buildJobResponse(record)
	if err != nil {
		return s.respondError(c, err, "Failed to load job")
	}
	return success(c, resp)
}
