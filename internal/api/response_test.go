package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travo-ai/travo/internal/testutil"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	writeJSON(w, 200, map[string]string{"message": "hello"}, testutil.Logger(t))

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Length"))

	var result map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "hello", result["message"])
}

func TestWriteJSONEncodingFailure(t *testing.T) {
	w := httptest.NewRecorder()

	// Channels are not JSON-encodable; headers must not be committed.
	writeJSON(w, 200, map[string]any{"ch": make(chan int)}, testutil.Logger(t))

	assert.Equal(t, 500, w.Code)
}

func TestWriteSuccessEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	writeSuccess(w, 201, map[string]int{"deleted": 3}, "Chats deleted successfully", testutil.Logger(t))

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "Chats deleted successfully", env.Message)
	assert.NotNil(t, env.Data)
}

func TestWriteErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	writeError(w, 401, "invalid credentials", testutil.Logger(t))

	assert.Equal(t, 401, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, "invalid credentials", env.Message)

	// Error envelopes carry no data field at all.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "data")
}
