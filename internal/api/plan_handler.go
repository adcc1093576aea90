package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/api/shared"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/ratelimit"
	"github.com/planforge/planforge-api/internal/service"
)

// SubmitPlanRequest represents the request body for creating a new plan.
type SubmitPlanRequest struct {
	Topic         string `json:"topic"          validate:"required,min=1,max=500"`
	SkillLevel    string `json:"skill_level"    validate:"required,oneof=beginner intermediate advanced"`
	WeeklyHours   int    `json:"weekly_hours"   validate:"required,min=1,max=80"`
	LearningStyle string `json:"learning_style" validate:"max=200"`
}

// RegeneratePlanRequest represents the request body for regenerating a
// plan. All fields are optional.
type RegeneratePlanRequest struct {
	Overrides string `json:"overrides" validate:"max=2000"`
}

// PlanSubmittedResponse is returned when a generation job was accepted.
type PlanSubmittedResponse struct {
	PlanID string `json:"plan_id"`
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobConflictResponse is returned when a regeneration was deduplicated
// against an already-active job.
type JobConflictResponse struct {
	Error         string `json:"error"`
	ExistingJobID string `json:"existing_job_id"`
}

// PlanHandler handles plan-related HTTP requests.
type PlanHandler struct {
	planService service.PlanService
	validator   *validator.Validate
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(planService service.PlanService) *PlanHandler {
	return &PlanHandler{
		planService: planService,
		validator:   validator.New(),
	}
}

// SubmitPlan handles POST /api/plans requests. Generation happens
// asynchronously, so acceptance returns 202 with the plan and job ids.
func (h *PlanHandler) SubmitPlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	var req SubmitPlanRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	plan, job, err := h.planService.SubmitGeneration(r.Context(), userID, service.SubmitRequest{
		Topic:         req.Topic,
		SkillLevel:    domain.SkillLevel(req.SkillLevel),
		WeeklyHours:   req.WeeklyHours,
		LearningStyle: req.LearningStyle,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, PlanSubmittedResponse{
		PlanID: plan.ID.String(),
		JobID:  job.ID.String(),
		Status: string(plan.GenerationStatus),
	})
}

// RegeneratePlan handles POST /api/plans/{id}/regenerate requests.
func (h *PlanHandler) RegeneratePlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	planID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid plan ID")
		return
	}

	var req RegeneratePlanRequest
	if r.ContentLength > 0 {
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}

	job, err := h.planService.RequestRegeneration(r.Context(), userID, planID, req.Overrides)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, PlanSubmittedResponse{
		PlanID: planID.String(),
		JobID:  job.ID.String(),
		Status: string(domain.GenerationStatusGenerating),
	})
}

// GetPlanStatus handles GET /api/plans/{id}/status requests.
func (h *PlanHandler) GetPlanStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	planID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid plan ID")
		return
	}

	status, err := h.planService.GetGenerationStatus(r.Context(), userID, planID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, status)
}

// respondServiceError maps a service error to a sanitized HTTP response.
// Rate limit rejections carry a Retry-After header; regeneration
// conflicts carry the existing job id.
func (h *PlanHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var rateLimited *ratelimit.RateLimitError
	if errors.As(err, &rateLimited) {
		retryAfter := int(rateLimited.RetryAfter / time.Second)
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		shared.RespondWithErrorAndLog(w, r, http.StatusTooManyRequests, GetSafeErrorMessage(err), err)
		return
	}

	var conflict *service.JobConflictError
	if errors.As(err, &conflict) {
		shared.RespondWithJSON(w, r, http.StatusConflict, JobConflictResponse{
			Error:         GetSafeErrorMessage(err),
			ExistingJobID: conflict.ExistingJobID.String(),
		})
		return
	}

	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}

// requestUserID extracts the authenticated user id set by the auth
// middleware, responding 401 when it is absent.
func requestUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return uuid.Nil, false
	}
	return userID, true
}
