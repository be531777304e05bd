package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageIncludesWrappedError(t *testing.T) {
	base := errors.New("connection refused")
	err := NotFound("user not found", base)

	assert.Equal(t, "NOT_FOUND: user not found: connection refused", err.Error())
}

func TestErrorMessageWithoutWrappedError(t *testing.T) {
	err := New(CodeInvalidArgument, "bad input", nil)

	assert.Equal(t, "INVALID_ARGUMENT: bad input", err.Error())
}

func TestWrapPreservesExistingCode(t *testing.T) {
	inner := Conflict("duplicate key", nil)
	wrapped := Wrap(inner, "failed to save record")

	assert.Equal(t, CodeConflict, wrapped.Code)
	assert.Equal(t, "failed to save record", wrapped.Message)
}

func TestWrapDefaultsToInternalForPlainError(t *testing.T) {
	wrapped := Wrap(errors.New("disk full"), "failed to write")

	assert.Equal(t, CodeInternal, wrapped.Code)
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "unused"))
}

func TestIsAndAsReexportStdlib(t *testing.T) {
	sentinel := errors.New("sentinel")
	wrapped := New(CodeInternal, "wrapping", sentinel)

	assert.True(t, Is(wrapped, sentinel))

	var ae *AppError
	require.True(t, As(wrapped, &ae))
	assert.Equal(t, CodeInternal, ae.Code)
}

func TestHTTPStatusMapsKnownCodes(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeInvalidArgument, http.StatusBadRequest},
		{CodeConflict, http.StatusConflict},
		{CodeForbidden, http.StatusForbidden},
		{CodeUnauthenticated, http.StatusUnauthorized},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		err := New(tc.code, "message", nil)
		assert.Equal(t, tc.want, HTTPStatus(err), "code %s", tc.code)
	}
}

func TestHTTPStatusDefaultsToInternalForPlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}
