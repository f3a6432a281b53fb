package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/studysift/internal/common"
	"github.com/joseph-ayodele/studysift/internal/llm"
)

func TestGenerateSendsNonStreamingRequest(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"model": got.Model, "response": `{"ok":true}`, "done": true})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/"}, nil)
	resp, err := c.Generate(context.Background(), llm.GenerateRequest{Model: "gemma2:9b", Prompt: "hola"})
	require.NoError(t, err)

	assert.Equal(t, generateRequest{Model: "gemma2:9b", Prompt: "hola", Stream: false}, got)
	assert.Equal(t, `{"ok":true}`, resp.Text)
	assert.True(t, resp.Success)
	assert.Equal(t, llm.BackendOllama, resp.Backend)
	assert.Equal(t, llm.BackendOllama, c.Backend())
}

func TestGenerateNon2xxIsBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := NewClient(Config{BaseURL: srv.URL}, nil).Generate(context.Background(), llm.GenerateRequest{Model: "gemma2:9b", Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, common.KindGenerationBackendError, common.KindOf(err))
	assert.False(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Text, llm.FailureMarker))
	assert.Contains(t, resp.Text, "404")

	var se *llm.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Contains(t, se.Body, "model not found")
}

func TestGenerateConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	resp, err := NewClient(Config{BaseURL: url}, nil).Generate(context.Background(), llm.GenerateRequest{Model: "m", Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, common.KindGenerationBackendError, common.KindOf(err))
	assert.True(t, strings.HasPrefix(resp.Text, llm.FailureMarker+" al conectar"))
}

func TestGenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil).
		Generate(context.Background(), llm.GenerateRequest{Model: "m", Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, common.KindGenerationBackendError, common.KindOf(err))
}

func TestGenerateUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>proxy</html>"))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}, nil).Generate(context.Background(), llm.GenerateRequest{Model: "m", Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, common.KindGenerationBackendError, common.KindOf(err))
}
