package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a failure by cause so callers can tell client input from backend faults.
type Kind string

const (
	KindUnsupportedFileType       Kind = "UnsupportedFileType"
	KindNoTextExtracted           Kind = "NoTextExtracted"
	KindExtractionBackendError    Kind = "ExtractionBackendError"
	KindNoExtractedText           Kind = "NoExtractedText"
	KindInvalidModelSelection     Kind = "InvalidModelSelection"
	KindGenerationBackendError    Kind = "GenerationBackendError"
	KindMalformedGenerationOutput Kind = "MalformedGenerationOutput"
	KindMaterializationError      Kind = "MaterializationError"
	KindInvalidInput              Kind = "InvalidInput"
	KindNotFound                  Kind = "NotFound"
	KindInternal                  Kind = "Internal"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Kind    Kind
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kindForCause(cause),
		Message: message,
		Cause:   cause,
	}
}

// NewKindError builds an AppError whose code is the kind itself.
func NewKindError(kind Kind, message string, cause error) *AppError {
	return &AppError{
		Code:    string(kind),
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

func UnsupportedFileType(ext string) *AppError {
	return NewKindError(KindUnsupportedFileType, fmt.Sprintf("unsupported file type: '.%s'", ext), nil)
}

func NoTextExtracted(path string) *AppError {
	return NewKindError(KindNoTextExtracted, fmt.Sprintf("no text content could be extracted from %s", path), nil)
}

func ExtractionBackendError(kind string, cause error) *AppError {
	return NewKindError(KindExtractionBackendError, fmt.Sprintf("error processing %s file", kind), cause)
}

func NoExtractedText(uploadID string) *AppError {
	return NewKindError(KindNoExtractedText, fmt.Sprintf("no extracted text for upload %s", uploadID), nil)
}

func InvalidModelSelection(model string, allowed []string) *AppError {
	return NewKindError(KindInvalidModelSelection, fmt.Sprintf("model %q is not one of %v", model, allowed), nil)
}

func GenerationBackendError(backend string, cause error) *AppError {
	return NewKindError(KindGenerationBackendError, fmt.Sprintf("%s generation failed", backend), cause)
}

// MalformedGenerationOutput keeps the repaired text so the failure can be diagnosed.
func MalformedGenerationOutput(repaired string, cause error) *AppError {
	return NewKindError(KindMalformedGenerationOutput, fmt.Sprintf("model output is not valid JSON: %s", truncate(repaired, 512)), cause)
}

func MaterializationError(message string, cause error) *AppError {
	return NewKindError(KindMaterializationError, message, cause)
}

func InvalidInput(message string) *AppError {
	return NewKindError(KindInvalidInput, message, ErrInvalidInput)
}

func NotFound(message string) *AppError {
	return NewKindError(KindNotFound, message, ErrNotFound)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// KindOf returns the kind of the first AppError in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) && ae.Kind != "" {
		return ae.Kind
	}
	return kindForCause(err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func kindForCause(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return KindInvalidInput
	}
	return KindInternal
}

// HTTPStatus maps err onto the status code callers rely on.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnsupportedFileType, KindNoTextExtracted, KindNoExtractedText,
		KindInvalidModelSelection, KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// GRPCCode is the gRPC equivalent of HTTPStatus.
func GRPCCode(err error) codes.Code {
	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusNotFound:
		return codes.NotFound
	}
	return codes.Internal
}

// ToStatus converts err into a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(GRPCCode(err), err.Error())
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return Truncate(s, n) + "..."
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence. Invalid bytes
// are dropped so the result is always valid UTF-8.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return strings.ToValidUTF8(s, "")
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.ToValidUTF8(s[:cut], "")
}
