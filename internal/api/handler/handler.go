package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"opsdesk/internal/api/dto"
	"opsdesk/internal/domain"
	"opsdesk/internal/service"
	"opsdesk/internal/workflow/postmeeting"
)

type RunHandler struct {
	runs *service.RunService
}

func NewRunHandler(runs *service.RunService) *RunHandler {
	return &RunHandler{runs: runs}
}

func (h *RunHandler) Register(r gin.IRouter) {
	v1 := r.Group("/api/v1")
	v1.POST("/runs", h.StartRun)
	v1.GET("/runs/:id", h.GetRun)
	v1.GET("/approvals", h.ListApprovals)
	v1.POST("/approvals/:id/decide", h.Decide)
	v1.POST("/meetings/finalize", h.FinalizeMeeting)
}

func (h *RunHandler) StartRun(c *gin.Context) {
	var req dto.StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := domain.RunKind(req.Kind)
	switch kind {
	case domain.RunKindMeetingPost, domain.RunKindMeetingPrep, domain.RunKindDailyBrief:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown run kind"})
		return
	}

	run, err := h.runs.StartRun(c.Request.Context(), service.StartRunInput{
		CompanyID:         req.CompanyID,
		Kind:              kind,
		MeetingID:         req.MeetingID,
		CreatedByPersonID: req.CreatedByPersonID,
	})
	if err != nil && run == nil {
		writeError(c, err)
		return
	}
	// A failed run still has a record worth returning.
	c.JSON(http.StatusCreated, dto.RunFromDomain(run))
}

func (h *RunHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	run, err := h.runs.GetRun(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RunFromDomain(run))
}

func (h *RunHandler) ListApprovals(c *gin.Context) {
	companyID, err := uuid.Parse(c.Query("company_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company_id"})
		return
	}
	status := domain.ApprovalStatus(c.Query("status"))

	approvals, err := h.runs.ListApprovals(c.Request.Context(), companyID, status)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]dto.ApprovalResponse, 0, len(approvals))
	for _, approval := range approvals {
		out = append(out, dto.ApprovalFromDomain(approval))
	}
	c.JSON(http.StatusOK, gin.H{"approvals": out})
}

func (h *RunHandler) Decide(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid approval id"})
		return
	}

	var req dto.DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := h.runs.Decide(c.Request.Context(), id, postmeeting.Resume{
		Decision:         domain.Decision(req.Decision),
		EditedPayload:    req.EditedPayload,
		Feedback:         req.Feedback,
		ReviewerPersonID: req.ReviewerID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RunFromDomain(run))
}

func (h *RunHandler) FinalizeMeeting(c *gin.Context) {
	var req dto.FinalizeMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.runs.FinalizeMeeting(c.Request.Context(), service.FinalizeInput{
		CompanyID:         req.CompanyID,
		MeetingID:         req.MeetingID,
		CreatedByPersonID: req.CreatedByPersonID,
		Provider:          req.Provider,
		Language:          req.Language,
		FullText:          req.FullText,
		Segments:          req.Segments,
		Bookmarks:         req.Bookmarks,
		StorageURL:        req.StorageURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrAlreadyDecided):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidDecision):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUpstreamFailure):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
