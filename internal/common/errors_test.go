package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unsupported", UnsupportedFileType("jpg"), http.StatusBadRequest},
		{"no text", NoTextExtracted("a.pdf"), http.StatusBadRequest},
		{"no extracted text", NoExtractedText("x"), http.StatusBadRequest},
		{"bad model", InvalidModelSelection("foo", []string{"gemma2:9b"}), http.StatusBadRequest},
		{"invalid input", InvalidInput("missing"), http.StatusBadRequest},
		{"not found", NotFound("upload"), http.StatusNotFound},
		{"backend", GenerationBackendError("ollama", errors.New("refused")), http.StatusInternalServerError},
		{"malformed", MalformedGenerationOutput("{", errors.New("eof")), http.StatusInternalServerError},
		{"extraction backend", ExtractionBackendError("PDF", errors.New("corrupt")), http.StatusInternalServerError},
		{"materialize", MaterializationError("boom", nil), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
		{"database", NewAppError("DB_ERROR", "load upload", errors.Join(ErrDatabase, errors.New("closed"))), http.StatusInternalServerError},
		{"wrapped sentinel", fmt.Errorf("load: %w", ErrNotFound), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("stage 2: %w", GenerationBackendError("gemini", errors.New("503")))
	assert.Equal(t, KindGenerationBackendError, KindOf(err))
	assert.True(t, IsKind(err, KindGenerationBackendError))
	assert.False(t, IsKind(nil, KindGenerationBackendError))
}

func TestUnsupportedFileTypeCarriesExtension(t *testing.T) {
	assert.Contains(t, UnsupportedFileType("jpg").Error(), "'.jpg'")
}

func TestToStatus(t *testing.T) {
	st, ok := status.FromError(ToStatus(NoExtractedText("u1")))
	assert.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.NoError(t, ToStatus(nil))
}

func TestMalformedOutputTruncatesDetail(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	err := MalformedGenerationOutput(string(long), nil)
	assert.Less(t, len(err.Message), 600)
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	s := "abcó" // ó is two bytes, starting at index 3
	assert.Equal(t, "abc", Truncate(s, 4))
	assert.Equal(t, "abcó", Truncate(s, 5))
	assert.Equal(t, "ab", Truncate("ab\xff", 10))

	long := strings.Repeat("é", 400)
	cut := MalformedGenerationOutput(long, nil).Message
	assert.True(t, utf8.ValidString(cut))
}
