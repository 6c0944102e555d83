package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	payload := map[string]string{"hello": "world"}

	WriteJSON(w, http.StatusOK, payload)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &body)
	require.NoError(t, err)
	assert.Equal(t, "world", body["hello"])
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, http.StatusBadRequest, "something went wrong")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "something went wrong"}`, w.Body.String())
}

func TestWriteErrorDetails(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorDetails(w, http.StatusBadRequest, "invalid step", []string{"stepId is required"})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid step", body.Error)
	assert.Equal(t, []string{"stepId is required"}, body.Details)
}

func TestWriteErrorDetails_OmitsEmptyDetails(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorDetails(w, http.StatusBadRequest, "invalid step", nil)

	assert.JSONEq(t, `{"error": "invalid step"}`, w.Body.String())
}
