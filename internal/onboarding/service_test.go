package onboarding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venla/onboard-gateway/internal/edge"
	"github.com/venla/onboard-gateway/internal/monitor"
)

type upstreamCall struct {
	method string
	path   string
	body   any
	opts   edge.CallOptions
}

// stubCaller scripts upstream responses per path and records every
// call the service makes.
type stubCaller struct {
	responses map[string]*edge.Response
	errs      map[string]error
	calls     []upstreamCall
}

func newStubCaller() *stubCaller {
	return &stubCaller{
		responses: make(map[string]*edge.Response),
		errs:      make(map[string]error),
	}
}

func (s *stubCaller) respond(path string, status int, body string) {
	s.responses[path] = &edge.Response{StatusCode: status, Body: []byte(body)}
}

func (s *stubCaller) Get(_ context.Context, path string, opts edge.CallOptions) (*edge.Response, error) {
	s.calls = append(s.calls, upstreamCall{method: http.MethodGet, path: path, opts: opts})
	if err := s.errs[path]; err != nil {
		return nil, err
	}
	resp, ok := s.responses[path]
	if !ok {
		return nil, fmt.Errorf("unexpected GET %s", path)
	}
	return resp, nil
}

func (s *stubCaller) Post(_ context.Context, path string, body any, opts edge.CallOptions) (*edge.Response, error) {
	s.calls = append(s.calls, upstreamCall{method: http.MethodPost, path: path, body: body, opts: opts})
	if err := s.errs[path]; err != nil {
		return nil, err
	}
	resp, ok := s.responses[path]
	if !ok {
		return nil, fmt.Errorf("unexpected POST %s", path)
	}
	return resp, nil
}

func (s *stubCaller) postedTo(path string) int {
	n := 0
	for _, c := range s.calls {
		if c.method == http.MethodPost && c.path == path {
			n++
		}
	}
	return n
}

const statusBody = `{
	"needs_onboarding": true,
	"onboarding": {
		"id": "ob-1",
		"tenant_id": "t-1",
		"onboarding_type": "business",
		"current_step": 2,
		"total_steps": 6,
		"completed_steps": ["user-profile", "business-profile"],
		"skipped_steps": [],
		"is_completed": false
	},
	"steps": [
		{"step_id": "user-profile", "sequence": 1, "status": "completed", "attempts": 1},
		{"step_id": "business-profile", "sequence": 2, "status": "completed", "attempts": 1}
	]
}`

func TestGetStatus(t *testing.T) {
	caller := newStubCaller()
	caller.respond("/status", http.StatusOK, statusBody)
	svc := NewService(caller, nil)

	status, err := svc.GetStatus(context.Background(), "tok", "t-1")
	require.NoError(t, err)
	assert.True(t, status.NeedsOnboarding)
	require.NotNil(t, status.Onboarding)
	assert.Equal(t, 2, status.Onboarding.CurrentStep)
	assert.Len(t, status.Steps, 2)

	require.Len(t, caller.calls, 1)
	assert.Equal(t, "tok", caller.calls[0].opts.AuthToken)
	assert.Equal(t, "t-1", caller.calls[0].opts.TenantID)
}

func TestGetStatusRejectsMalformedShape(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing needs_onboarding", `{"onboarding": null}`},
		{"steps not an array", `{"needs_onboarding": false, "steps": {"a": 1}}`},
		{"not JSON", `<html>bad gateway</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := newStubCaller()
			caller.respond("/status", http.StatusOK, tt.body)
			svc := NewService(caller, nil)

			_, err := svc.GetStatus(context.Background(), "tok", "t-1")
			require.Error(t, err)
			assert.Equal(t, KindValidation, AsError(err).Kind)
		})
	}
}

func TestGetStatusUpstreamError(t *testing.T) {
	caller := newStubCaller()
	caller.respond("/status", http.StatusUnauthorized, `{"error": "bad token"}`)
	svc := NewService(caller, nil)

	_, err := svc.GetStatus(context.Background(), "tok", "t-1")
	require.Error(t, err)
	oe := AsError(err)
	assert.Equal(t, KindAuth, oe.Kind)
	assert.Equal(t, http.StatusUnauthorized, oe.UpstreamStatus)
	assert.Equal(t, "bad token", oe.Message)
}

func TestInitializeCreatedVersusResumed(t *testing.T) {
	caller := newStubCaller()
	caller.respond("/initialize", http.StatusCreated, `{"id": "ob-1", "message": "onboarding started"}`)
	svc := NewService(caller, nil)

	result, err := svc.Initialize(context.Background(), "tok", "t-1")
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "ob-1", result.ID)

	caller.respond("/initialize", http.StatusOK, `{"id": "ob-1", "message": "onboarding resumed"}`)
	result, err = svc.Initialize(context.Background(), "tok", "t-1")
	require.NoError(t, err)
	assert.False(t, result.Created)
}

func TestCompleteStepForwardsIdempotencyKey(t *testing.T) {
	caller := newStubCaller()
	caller.respond("/complete-step", http.StatusOK, `{"success": true, "current_step": 2, "completed_steps": ["user-profile"]}`)
	svc := NewService(caller, nil)

	result, err := svc.CompleteStep(context.Background(), "tok", "t-1", StepUserProfile,
		map[string]any{"display_name": "Ada"}, "retry-key-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.CurrentStep)

	require.Len(t, caller.calls, 1)
	call := caller.calls[0]
	assert.Equal(t, "retry-key-1", call.opts.IdempotencyKey)

	body, ok := call.body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, StepUserProfile, body["step_id"])
	assert.Equal(t, map[string]any{"display_name": "Ada"}, body["data"])
}

// idempotentUpstream advances current_step once per idempotency key,
// replaying the earlier result for repeats.
type idempotentUpstream struct {
	stubCaller
	currentStep int
	seenKeys    map[string]string
}

func (u *idempotentUpstream) Post(ctx context.Context, path string, body any, opts edge.CallOptions) (*edge.Response, error) {
	u.calls = append(u.calls, upstreamCall{method: http.MethodPost, path: path, body: body, opts: opts})
	if prior, ok := u.seenKeys[opts.IdempotencyKey]; ok && opts.IdempotencyKey != "" {
		return &edge.Response{StatusCode: http.StatusOK, Body: []byte(prior)}, nil
	}
	u.currentStep++
	result := fmt.Sprintf(`{"success": true, "current_step": %d}`, u.currentStep)
	if u.seenKeys == nil {
		u.seenKeys = make(map[string]string)
	}
	u.seenKeys[opts.IdempotencyKey] = result
	return &edge.Response{StatusCode: http.StatusOK, Body: []byte(result)}, nil
}

func TestCompleteStepRetrySameKeyDoesNotAdvanceTwice(t *testing.T) {
	upstream := &idempotentUpstream{}
	svc := NewService(upstream, nil)

	first, err := svc.CompleteStep(context.Background(), "tok", "t-1", StepUserProfile, nil, "key-1")
	require.NoError(t, err)
	second, err := svc.CompleteStep(context.Background(), "tok", "t-1", StepUserProfile, nil, "key-1")
	require.NoError(t, err)

	// Both calls went out, the state advanced once.
	assert.Len(t, upstream.calls, 2)
	assert.Equal(t, 1, upstream.currentStep)
	assert.Equal(t, first.CurrentStep, second.CurrentStep)

	// A fresh key advances again.
	third, err := svc.CompleteStep(context.Background(), "tok", "t-1", StepBusinessProfile, nil, "key-2")
	require.NoError(t, err)
	assert.Equal(t, 2, third.CurrentStep)
}

func TestCompleteStepOmitsEmptyData(t *testing.T) {
	caller := newStubCaller()
	caller.respond("/complete-step", http.StatusOK, `{"success": true, "current_step": 1}`)
	svc := NewService(caller, nil)

	_, err := svc.CompleteStep(context.Background(), "tok", "t-1", StepTour, nil, "")
	require.NoError(t, err)

	body := caller.calls[0].body.(map[string]any)
	_, hasData := body["data"]
	assert.False(t, hasData)
	assert.Empty(t, caller.calls[0].opts.IdempotencyKey)
}

func TestSkipStep(t *testing.T) {
	caller := newStubCaller()
	caller.respond("/skip-step", http.StatusOK, `{"success": true, "message": "step skipped", "current_step": 4, "skipped_steps": ["data-setup"]}`)
	svc := NewService(caller, nil)

	result, err := svc.SkipStep(context.Background(), "tok", "t-1", StepDataSetup)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"data-setup"}, result.SkippedSteps)

	body := caller.calls[0].body.(map[string]any)
	assert.Equal(t, StepDataSetup, body["step_id"])
}

func TestUpdateProgress(t *testing.T) {
	caller := newStubCaller()
	caller.respond("/update-progress", http.StatusOK, `{"success": true, "message": "progress saved"}`)
	svc := NewService(caller, nil)

	step := 3
	result, err := svc.UpdateProgress(context.Background(), "tok", "t-1", ProgressUpdate{
		CurrentStep: &step,
		StepData:    map[string]any{"note": "resumed"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	update, ok := caller.calls[0].body.(ProgressUpdate)
	require.True(t, ok)
	assert.Equal(t, 3, *update.CurrentStep)
}

func TestCompleteHappyPath(t *testing.T) {
	caller := newStubCaller()
	caller.respond("/status", http.StatusOK, statusBody)
	caller.respond("/complete", http.StatusOK, `{"success": true, "message": "onboarding completed"}`)
	svc := NewService(caller, nil)

	result, err := svc.Complete(context.Background(), "tok", "t-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, caller.postedTo("/complete"))
}

func TestCompleteRejectsMissingRequiredSteps(t *testing.T) {
	caller := newStubCaller()
	caller.respond("/status", http.StatusOK, `{
		"needs_onboarding": true,
		"onboarding": {"id": "ob-1", "tenant_id": "t-1", "current_step": 1, "total_steps": 6, "completed_steps": ["user-profile"], "skipped_steps": []}
	}`)
	svc := NewService(caller, nil)

	_, err := svc.Complete(context.Background(), "tok", "t-1")
	require.Error(t, err)
	oe := AsError(err)
	assert.Equal(t, KindConflict, oe.Kind)
	assert.Contains(t, oe.Message, "business-profile")

	// The finalize call never went out.
	assert.Zero(t, caller.postedTo("/complete"))
}

func TestCompleteWithoutRecord(t *testing.T) {
	caller := newStubCaller()
	caller.respond("/status", http.StatusOK, `{"needs_onboarding": true, "onboarding": null}`)
	svc := NewService(caller, nil)

	_, err := svc.Complete(context.Background(), "tok", "t-1")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, AsError(err).Kind)
	assert.Zero(t, caller.postedTo("/complete"))
}

func TestTransportErrors(t *testing.T) {
	caller := newStubCaller()
	caller.errs["/status"] = fmt.Errorf("call upstream: %w", edge.ErrTimeout)
	svc := NewService(caller, nil)

	_, err := svc.GetStatus(context.Background(), "tok", "t-1")
	require.Error(t, err)
	oe := AsError(err)
	assert.Equal(t, KindConnectivity, oe.Kind)
	assert.Equal(t, "onboarding backend timed out", oe.Message)

	caller.errs["/status"] = errors.New("connection refused")
	_, err = svc.GetStatus(context.Background(), "tok", "t-1")
	require.Error(t, err)
	oe = AsError(err)
	assert.Equal(t, KindConnectivity, oe.Kind)
	assert.Contains(t, oe.Message, "connection refused")
}

func TestTestConnection(t *testing.T) {
	caller := newStubCaller()
	caller.respond("/status", http.StatusOK, `{"needs_onboarding": false, "onboarding": null}`)
	svc := NewService(caller, nil)

	ok, msg := svc.TestConnection(context.Background(), "tok", "t-1")
	assert.True(t, ok)
	assert.NotEmpty(t, msg)

	caller.errs["/status"] = errors.New("connection refused")
	ok, msg = svc.TestConnection(context.Background(), "tok", "t-1")
	assert.False(t, ok)
	assert.Contains(t, msg, "connection refused")
}

// panicNotifier simulates a broken monitoring collaborator.
type panicNotifier struct{}

func (panicNotifier) CaptureException(error, monitor.Event) {
	panic("monitoring down")
}

func TestFailingNotifierDoesNotMaskErrors(t *testing.T) {
	caller := newStubCaller()
	caller.respond("/status", http.StatusInternalServerError, `{"error": "db down"}`)
	svc := NewService(caller, panicNotifier{})

	_, err := svc.GetStatus(context.Background(), "tok", "t-1")
	require.Error(t, err)
	oe := AsError(err)
	assert.Equal(t, KindUpstream, oe.Kind)
	assert.Equal(t, "db down", oe.Message)
}

// captureNotifier records the events the service reports.
type captureNotifier struct {
	events []monitor.Event
}

func (n *captureNotifier) CaptureException(_ error, event monitor.Event) {
	n.events = append(n.events, event)
}

func TestStepDecodeFailuresAreCaptured(t *testing.T) {
	caller := newStubCaller()
	caller.respond("/complete-step", http.StatusOK, `not json at all`)
	caller.respond("/skip-step", http.StatusOK, `not json at all`)
	notifier := &captureNotifier{}
	svc := NewService(caller, notifier)

	_, err := svc.CompleteStep(context.Background(), "tok", "t-1", StepUserProfile, nil, "")
	require.Error(t, err)
	assert.Equal(t, KindValidation, AsError(err).Kind)

	_, err = svc.SkipStep(context.Background(), "tok", "t-1", StepDataSetup)
	require.Error(t, err)

	require.Len(t, notifier.events, 2)
	assert.Equal(t, "complete_step", notifier.events[0].Tags["operation"])
	assert.Equal(t, "skip_step", notifier.events[1].Tags["operation"])
	assert.Equal(t, "validation", notifier.events[0].Tags["kind"])
}

func TestFailuresAreCaptured(t *testing.T) {
	caller := newStubCaller()
	caller.respond("/status", http.StatusServiceUnavailable, `{"error": "maintenance"}`)
	notifier := &captureNotifier{}
	svc := NewService(caller, notifier)

	_, err := svc.GetStatus(context.Background(), "tok", "t-1")
	require.Error(t, err)

	require.Len(t, notifier.events, 1)
	event := notifier.events[0]
	assert.Equal(t, "get_status", event.Tags["operation"])
	assert.Equal(t, "t-1", event.Tags["tenant_id"])
	assert.Equal(t, "upstream", event.Tags["kind"])
	assert.Equal(t, monitor.LevelError, event.Level)
}
