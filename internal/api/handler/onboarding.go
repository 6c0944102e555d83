package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/venla/onboard-gateway/internal/api/middleware"
	"github.com/venla/onboard-gateway/internal/api/request"
	"github.com/venla/onboard-gateway/internal/api/response"
	"github.com/venla/onboard-gateway/internal/audit"
	"github.com/venla/onboard-gateway/internal/edge"
	"github.com/venla/onboard-gateway/internal/onboarding"
)

// OnboardingService is the operation surface the handler drives. The
// concrete implementation is *onboarding.Service.
type OnboardingService interface {
	GetStatus(ctx context.Context, authToken, tenantID string) (*onboarding.StatusResponse, error)
	Initialize(ctx context.Context, authToken, tenantID string) (*onboarding.InitializeResult, error)
	CompleteStep(ctx context.Context, authToken, tenantID, stepID string, data map[string]any, idempotencyKey string) (*onboarding.StepResult, error)
	SkipStep(ctx context.Context, authToken, tenantID, stepID string) (*onboarding.StepResult, error)
	UpdateProgress(ctx context.Context, authToken, tenantID string, update onboarding.ProgressUpdate) (*onboarding.OperationResult, error)
	Complete(ctx context.Context, authToken, tenantID string) (*onboarding.OperationResult, error)
	TestConnection(ctx context.Context, authToken, tenantID string) (bool, string)
}

// Auditor receives one record per request outcome, including pure
// validation rejections.
type Auditor interface {
	Record(entry audit.Entry)
}

type Onboarding struct {
	svc     OnboardingService
	auditor Auditor
}

func NewOnboarding(svc OnboardingService, auditor Auditor) *Onboarding {
	return &Onboarding{svc: svc, auditor: auditor}
}

// Status godoc
//
//	@Summary		Get onboarding status
//	@Tags			Onboarding
//	@Security		BearerAuth
//	@Success		200 {object} onboarding.StatusResponse
//	@Failure		400 {object} response.ErrorResponse
//	@Failure		401 {object} response.ErrorResponse
//	@Router			/onboarding/status [get]
func (h *Onboarding) Status(w http.ResponseWriter, r *http.Request) {
	token, tenantID := credentials(r)

	status, err := h.svc.GetStatus(r.Context(), token, tenantID)
	if err != nil {
		h.fail("onboarding.status", tenantID, err, nil)
		respondError(w, err)
		return
	}

	// Progress and next step are derived here from the catalog rather
	// than trusted off the wire.
	if status.Onboarding != nil {
		status.Progress = onboarding.Progress(len(status.Onboarding.CompletedSteps), status.Onboarding.TotalSteps)
		status.NextStep = onboarding.NextStepID(status.Onboarding.CurrentStep)
	}

	h.ok("onboarding.status", tenantID, map[string]any{
		"needs_onboarding": status.NeedsOnboarding,
	})
	response.WriteJSON(w, http.StatusOK, status)
}

// Initialize godoc
//
//	@Summary		Start or resume onboarding
//	@Tags			Onboarding
//	@Security		BearerAuth
//	@Success		201 {object} onboarding.InitializeResult
//	@Success		200 {object} onboarding.InitializeResult
//	@Router			/onboarding/initialize [post]
func (h *Onboarding) Initialize(w http.ResponseWriter, r *http.Request) {
	token, tenantID := credentials(r)

	result, err := h.svc.Initialize(r.Context(), token, tenantID)
	if err != nil {
		h.fail("onboarding.initialize", tenantID, err, nil)
		respondError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	h.ok("onboarding.initialize", tenantID, map[string]any{
		"record_id": result.ID,
		"created":   result.Created,
	})
	response.WriteJSON(w, status, result)
}

// CompleteStep godoc
//
//	@Summary		Mark an onboarding step completed
//	@Tags			Onboarding
//	@Security		BearerAuth
//	@Param			body body request.CompleteStep true "Step completion"
//	@Success		200 {object} onboarding.StepResult
//	@Failure		400 {object} response.ErrorResponse
//	@Router			/onboarding/step/complete [post]
func (h *Onboarding) CompleteStep(w http.ResponseWriter, r *http.Request) {
	token, tenantID := credentials(r)

	var req request.CompleteStep
	if err := request.Decode(r, &req); err != nil {
		h.reject("onboarding.step.complete", tenantID, []string{err.Error()})
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if details := request.ValidateStepID(req.StepID); details != nil {
		h.reject("onboarding.step.complete", tenantID, details)
		response.WriteErrorDetails(w, http.StatusBadRequest, "invalid step", details)
		return
	}

	idempotencyKey := r.Header.Get(edge.HeaderIdempotencyKey)
	result, err := h.svc.CompleteStep(r.Context(), token, tenantID, req.StepID, req.Data, idempotencyKey)
	if err != nil {
		h.fail("onboarding.step.complete", tenantID, err, map[string]any{"step_id": req.StepID})
		respondError(w, err)
		return
	}

	h.ok("onboarding.step.complete", tenantID, map[string]any{
		"step_id":         req.StepID,
		"current_step":    result.CurrentStep,
		"completed_steps": result.CompletedSteps,
	})
	response.WriteJSON(w, http.StatusOK, result)
}

// SkipStep godoc
//
//	@Summary		Skip a non-required onboarding step
//	@Tags			Onboarding
//	@Security		BearerAuth
//	@Param			body body request.SkipStep true "Step to skip"
//	@Success		200 {object} onboarding.StepResult
//	@Failure		400 {object} response.ErrorResponse
//	@Router			/onboarding/step/skip [put]
func (h *Onboarding) SkipStep(w http.ResponseWriter, r *http.Request) {
	token, tenantID := credentials(r)

	var req request.SkipStep
	if err := request.Decode(r, &req); err != nil {
		h.reject("onboarding.step.skip", tenantID, []string{err.Error()})
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if details := request.ValidateSkippableStep(req.StepID); details != nil {
		h.reject("onboarding.step.skip", tenantID, details)
		response.WriteErrorDetails(w, http.StatusBadRequest, "step cannot be skipped", details)
		return
	}

	result, err := h.svc.SkipStep(r.Context(), token, tenantID, req.StepID)
	if err != nil {
		h.fail("onboarding.step.skip", tenantID, err, map[string]any{"step_id": req.StepID})
		respondError(w, err)
		return
	}

	h.ok("onboarding.step.skip", tenantID, map[string]any{
		"step_id":       req.StepID,
		"current_step":  result.CurrentStep,
		"skipped_steps": result.SkippedSteps,
	})
	response.WriteJSON(w, http.StatusOK, result)
}

// UpdateProgress godoc
//
//	@Summary		Directly update onboarding progress
//	@Description	Escape hatch for resuming partial flows; bypasses step-by-step ordering on purpose.
//	@Tags			Onboarding
//	@Security		BearerAuth
//	@Param			body body request.UpdateProgress true "Progress update"
//	@Success		200 {object} onboarding.OperationResult
//	@Router			/onboarding/progress [put]
func (h *Onboarding) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	token, tenantID := credentials(r)

	var req request.UpdateProgress
	if err := request.Decode(r, &req); err != nil {
		h.reject("onboarding.progress", tenantID, []string{err.Error()})
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.UpdateProgress(r.Context(), token, tenantID, onboarding.ProgressUpdate{
		CurrentStep: req.CurrentStep,
		StepData:    req.StepData,
	})
	if err != nil {
		h.fail("onboarding.progress", tenantID, err, nil)
		respondError(w, err)
		return
	}

	h.ok("onboarding.progress", tenantID, nil)
	response.WriteJSON(w, http.StatusOK, result)
}

// Complete godoc
//
//	@Summary		Finalize onboarding
//	@Tags			Onboarding
//	@Security		BearerAuth
//	@Success		200 {object} onboarding.OperationResult
//	@Failure		409 {object} response.ErrorResponse
//	@Router			/onboarding/complete [post]
func (h *Onboarding) Complete(w http.ResponseWriter, r *http.Request) {
	token, tenantID := credentials(r)

	result, err := h.svc.Complete(r.Context(), token, tenantID)
	if err != nil {
		h.fail("onboarding.complete", tenantID, err, nil)
		respondError(w, err)
		return
	}

	h.ok("onboarding.complete", tenantID, nil)
	response.WriteJSON(w, http.StatusOK, result)
}

// Test godoc
//
//	@Summary		Probe onboarding backend reachability
//	@Tags			Onboarding
//	@Security		BearerAuth
//	@Success		200 {object} onboarding.OperationResult
//	@Failure		503 {object} onboarding.OperationResult
//	@Router			/onboarding/test [get]
func (h *Onboarding) Test(w http.ResponseWriter, r *http.Request) {
	token, tenantID := credentials(r)

	ok, message := h.svc.TestConnection(r.Context(), token, tenantID)
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	h.record(audit.Entry{
		Action:   "onboarding.test",
		Resource: "onboarding",
		TenantID: tenantID,
		Success:  ok,
	})
	response.WriteJSON(w, status, onboarding.OperationResult{Success: ok, Message: message})
}

func credentials(r *http.Request) (token, tenantID string) {
	return middleware.AuthToken(r.Context()), middleware.TenantID(r.Context())
}

// respondError converts a service failure to the outward HTTP status,
// defaulting to 500 for anything outside the taxonomy.
func respondError(w http.ResponseWriter, err error) {
	var oe *onboarding.Error
	if errors.As(err, &oe) {
		response.WriteError(w, oe.HTTPStatus(), oe.Message)
		return
	}
	response.WriteError(w, http.StatusInternalServerError, err.Error())
}

func (h *Onboarding) ok(action, tenantID string, metadata map[string]any) {
	h.record(audit.Entry{
		Action:   action,
		Resource: "onboarding",
		TenantID: tenantID,
		Success:  true,
		Metadata: metadata,
	})
}

func (h *Onboarding) fail(action, tenantID string, err error, metadata map[string]any) {
	severity := "warning"
	var oe *onboarding.Error
	if errors.As(err, &oe) && oe.Kind == onboarding.KindUpstream {
		severity = "error"
	}
	h.record(audit.Entry{
		Action:   action,
		Resource: "onboarding",
		TenantID: tenantID,
		Success:  false,
		Error:    err.Error(),
		Severity: severity,
		Metadata: metadata,
	})
}

func (h *Onboarding) reject(action, tenantID string, details []string) {
	h.record(audit.Entry{
		Action:   action,
		Resource: "onboarding",
		TenantID: tenantID,
		Success:  false,
		Error:    "validation rejected",
		Metadata: map[string]any{"details": details},
	})
}

// record is insulated: an audit failure must never change the HTTP
// response.
func (h *Onboarding) record(entry audit.Entry) {
	if h.auditor == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	h.auditor.Record(entry)
}
