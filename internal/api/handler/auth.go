package handler

import (
	"context"
	"net/http"

	"github.com/venla/onboard-gateway/internal/api/middleware"
	"github.com/venla/onboard-gateway/internal/api/request"
	"github.com/venla/onboard-gateway/internal/api/response"
	"github.com/venla/onboard-gateway/internal/audit"
	"github.com/venla/onboard-gateway/internal/coalesce"
	"github.com/venla/onboard-gateway/internal/edge"
	"github.com/venla/onboard-gateway/internal/onboarding"
)

// RegistrationResult is the upstream's answer to a completed
// registration.
type RegistrationResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	TenantID string `json:"tenant_id,omitempty"`
}

// Auth handles the registration route. Completing a registration is
// side-effecting upstream, so concurrent identical submissions are
// coalesced into one call.
type Auth struct {
	client    onboarding.Caller
	coalescer *coalesce.Coalescer
	auditor   Auditor
}

func NewAuth(client onboarding.Caller, coalescer *coalesce.Coalescer, auditor Auditor) *Auth {
	return &Auth{client: client, coalescer: coalescer, auditor: auditor}
}

// CompleteRegistration godoc
//
//	@Summary		Complete a pending registration
//	@Tags			Auth
//	@Security		BearerAuth
//	@Param			body body request.CompleteRegistration true "Registration details"
//	@Success		200 {object} RegistrationResult
//	@Failure		400 {object} response.ErrorResponse
//	@Failure		401 {object} response.ErrorResponse
//	@Router			/auth/complete-registration [post]
func (h *Auth) CompleteRegistration(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if middleware.BearerToken(r) == "" {
		response.WriteError(w, http.StatusUnauthorized, "missing authorization header")
		return
	}

	var req request.CompleteRegistration
	if err := request.Decode(r, &req); err != nil {
		h.audit(req.TenantName, false, err.Error())
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := coalesce.Fingerprint("complete_registration", authHeader, req.TenantName)
	v, err := h.coalescer.Do(r.Context(), key, func(ctx context.Context) (any, error) {
		resp, err := h.client.Post(ctx, "/complete-registration", req, edge.CallOptions{
			AuthToken: middleware.BearerToken(r),
		})
		if err != nil {
			return nil, onboarding.AsError(err)
		}
		if resp.StatusCode >= 400 {
			return nil, onboarding.FromStatus(resp.StatusCode, resp.Message())
		}
		var result RegistrationResult
		if err := resp.JSON(&result); err != nil {
			return nil, onboarding.Errorf(onboarding.KindValidation, "decode registration response: %v", err)
		}
		return &result, nil
	})
	if err != nil {
		h.audit(req.TenantName, false, err.Error())
		respondError(w, err)
		return
	}

	result := v.(*RegistrationResult)
	h.audit(req.TenantName, true, "")
	response.WriteJSON(w, http.StatusOK, result)
}

func (h *Auth) audit(tenantName string, success bool, errMsg string) {
	if h.auditor == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	h.auditor.Record(audit.Entry{
		Action:   "auth.complete_registration",
		Resource: "registration",
		Success:  success,
		Error:    errMsg,
		Metadata: map[string]any{"tenant_name": tenantName},
	})
}
