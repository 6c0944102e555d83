package onboarding

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/venla/onboard-gateway/internal/edge"
	"github.com/venla/onboard-gateway/internal/monitor"
)

// Upstream paths relative to the edge function base URL.
const (
	pathStatus         = "/status"
	pathInitialize     = "/initialize"
	pathCompleteStep   = "/complete-step"
	pathSkipStep       = "/skip-step"
	pathUpdateProgress = "/update-progress"
	pathComplete       = "/complete"
)

// Caller is the slice of the edge client the service needs. The
// concrete implementation is *edge.Client.
type Caller interface {
	Get(ctx context.Context, path string, opts edge.CallOptions) (*edge.Response, error)
	Post(ctx context.Context, path string, body any, opts edge.CallOptions) (*edge.Response, error)
}

// Service translates onboarding operations into signed upstream calls
// and normalizes every failure into the domain error taxonomy. Caller
// contract checks (auth token, tenant, step validity) happen in the
// HTTP handler; they are not re-validated here.
type Service struct {
	client   Caller
	notifier monitor.Notifier
}

// NewService creates the operation service. A nil notifier disables
// error capture.
func NewService(client Caller, notifier monitor.Notifier) *Service {
	if notifier == nil {
		notifier = monitor.Nop{}
	}
	return &Service{client: client, notifier: notifier}
}

// GetStatus fetches the tenant's onboarding status.
func (s *Service) GetStatus(ctx context.Context, authToken, tenantID string) (*StatusResponse, error) {
	resp, err := s.client.Get(ctx, pathStatus, edge.CallOptions{AuthToken: authToken, TenantID: tenantID})
	if err != nil {
		return nil, s.fail("get_status", tenantID, s.transport(err))
	}
	if resp.StatusCode >= 400 {
		return nil, s.fail("get_status", tenantID, fromResponse(resp))
	}

	if err := validateStatusShape(resp.Body); err != nil {
		return nil, s.fail("get_status", tenantID, AsError(err))
	}

	var status StatusResponse
	if err := resp.JSON(&status); err != nil {
		return nil, s.fail("get_status", tenantID, Errorf(KindValidation, "decode status response: %v", err))
	}
	return &status, nil
}

// Initialize creates the tenant's onboarding record, or resumes the
// existing one. The upstream signals which happened through the
// status code: 201 created, 200 resumed.
func (s *Service) Initialize(ctx context.Context, authToken, tenantID string) (*InitializeResult, error) {
	resp, err := s.client.Post(ctx, pathInitialize, nil, edge.CallOptions{AuthToken: authToken, TenantID: tenantID})
	if err != nil {
		return nil, s.fail("initialize", tenantID, s.transport(err))
	}
	if resp.StatusCode >= 400 {
		return nil, s.fail("initialize", tenantID, fromResponse(resp))
	}

	var result InitializeResult
	if err := resp.JSON(&result); err != nil {
		return nil, s.fail("initialize", tenantID, Errorf(KindValidation, "decode initialize response: %v", err))
	}
	result.Created = resp.StatusCode == http.StatusCreated
	return &result, nil
}

// CompleteStep marks a step done. The idempotency key, when present,
// is forwarded so the upstream can deduplicate client retries without
// double-advancing current_step.
func (s *Service) CompleteStep(ctx context.Context, authToken, tenantID, stepID string, data map[string]any, idempotencyKey string) (*StepResult, error) {
	body := map[string]any{"step_id": stepID}
	if len(data) > 0 {
		body["data"] = data
	}

	resp, err := s.client.Post(ctx, pathCompleteStep, body, edge.CallOptions{
		AuthToken:      authToken,
		TenantID:       tenantID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, s.fail("complete_step", tenantID, s.transport(err))
	}
	if resp.StatusCode >= 400 {
		return nil, s.fail("complete_step", tenantID, fromResponse(resp))
	}

	result, derr := decodeStepResult(resp, "complete-step")
	if derr != nil {
		return nil, s.fail("complete_step", tenantID, derr)
	}
	return result, nil
}

// SkipStep skips a non-required step. The handler rejects required
// steps before this is ever called.
func (s *Service) SkipStep(ctx context.Context, authToken, tenantID, stepID string) (*StepResult, error) {
	body := map[string]any{"step_id": stepID}

	resp, err := s.client.Post(ctx, pathSkipStep, body, edge.CallOptions{AuthToken: authToken, TenantID: tenantID})
	if err != nil {
		return nil, s.fail("skip_step", tenantID, s.transport(err))
	}
	if resp.StatusCode >= 400 {
		return nil, s.fail("skip_step", tenantID, fromResponse(resp))
	}

	result, derr := decodeStepResult(resp, "skip-step")
	if derr != nil {
		return nil, s.fail("skip_step", tenantID, derr)
	}
	return result, nil
}

// UpdateProgress writes current_step and step data directly,
// bypassing step-by-step semantics. Used to resume partial flows; it
// is intentionally unguarded.
func (s *Service) UpdateProgress(ctx context.Context, authToken, tenantID string, update ProgressUpdate) (*OperationResult, error) {
	resp, err := s.client.Post(ctx, pathUpdateProgress, update, edge.CallOptions{AuthToken: authToken, TenantID: tenantID})
	if err != nil {
		return nil, s.fail("update_progress", tenantID, s.transport(err))
	}
	if resp.StatusCode >= 400 {
		return nil, s.fail("update_progress", tenantID, fromResponse(resp))
	}

	var result OperationResult
	if err := resp.JSON(&result); err != nil {
		return nil, s.fail("update_progress", tenantID, Errorf(KindValidation, "decode update-progress response: %v", err))
	}
	return &result, nil
}

// Complete finalizes the onboarding record. The required-step
// precondition is enforced here with a status fetch before the
// finalize call, rather than trusting the backend to reject.
func (s *Service) Complete(ctx context.Context, authToken, tenantID string) (*OperationResult, error) {
	status, err := s.GetStatus(ctx, authToken, tenantID)
	if err != nil {
		return nil, err
	}
	if status.Onboarding == nil {
		return nil, s.fail("complete", tenantID, Errorf(KindNotFound, "onboarding not initialized for tenant"))
	}
	if missing := missingRequiredSteps(status.Onboarding.CompletedSteps); len(missing) > 0 {
		return nil, s.fail("complete", tenantID,
			Errorf(KindConflict, "required steps not completed: %v", missing))
	}

	resp, err := s.client.Post(ctx, pathComplete, nil, edge.CallOptions{AuthToken: authToken, TenantID: tenantID})
	if err != nil {
		return nil, s.fail("complete", tenantID, s.transport(err))
	}
	if resp.StatusCode >= 400 {
		return nil, s.fail("complete", tenantID, fromResponse(resp))
	}

	var result OperationResult
	if err := resp.JSON(&result); err != nil {
		return nil, s.fail("complete", tenantID, Errorf(KindValidation, "decode complete response: %v", err))
	}
	return &result, nil
}

// TestConnection probes upstream reachability. It never returns an
// error: failures come back as ok=false with a message.
func (s *Service) TestConnection(ctx context.Context, authToken, tenantID string) (bool, string) {
	if _, err := s.GetStatus(ctx, authToken, tenantID); err != nil {
		return false, AsError(err).Message
	}
	return true, "onboarding backend reachable"
}

func missingRequiredSteps(completed []string) []string {
	done := make(map[string]bool, len(completed))
	for _, id := range completed {
		done[id] = true
	}
	var missing []string
	for _, def := range Steps() {
		if def.IsRequired && !done[def.ID] {
			missing = append(missing, def.ID)
		}
	}
	return missing
}

func decodeStepResult(resp *edge.Response, op string) (*StepResult, *Error) {
	var result StepResult
	if err := resp.JSON(&result); err != nil {
		return nil, Errorf(KindValidation, "decode %s response: %v", op, err)
	}
	return &result, nil
}

// transport classifies a transport-level failure. Timeouts are
// treated identically to network errors.
func (s *Service) transport(err error) *Error {
	if errors.Is(err, edge.ErrTimeout) {
		return &Error{Kind: KindConnectivity, Message: "onboarding backend timed out"}
	}
	return &Error{Kind: KindConnectivity, Message: fmt.Sprintf("onboarding backend unreachable: %v", err)}
}

// fromResponse maps a non-2xx upstream response to a domain error.
func fromResponse(resp *edge.Response) *Error {
	return FromStatus(resp.StatusCode, resp.Message())
}

// fail reports the error to the monitoring collaborator and returns
// it unchanged.
func (s *Service) fail(operation, tenantID string, err *Error) *Error {
	s.capture(operation, tenantID, err)
	return err
}

// capture is insulated so a failing notifier can never replace or
// mask the primary result.
func (s *Service) capture(operation, tenantID string, err *Error) {
	defer func() {
		_ = recover()
	}()

	level := monitor.LevelWarning
	if err.Kind == KindUpstream {
		level = monitor.LevelError
	}
	s.notifier.CaptureException(err, monitor.Event{
		Tags: map[string]string{
			"operation": operation,
			"tenant_id": tenantID,
			"kind":      err.Kind.String(),
		},
		Extra: map[string]any{"upstream_status": err.UpstreamStatus},
		Level: level,
	})
}
