package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches wrapped domain error", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeNotFound, "shipment not found"))
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeForbidden))
	})

	t.Run("plain errors map to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})

	t.Run("wrap keeps the cause reachable", func(t *testing.T) {
		cause := errors.New("db down")
		err := Wrap(cause, CodeInternal, "failed to load shipment")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "failed to load shipment: db down", err.Error())
	})
}

func TestWithViolations(t *testing.T) {
	err := WithViolations(CodeValidation, []FieldViolation{
		{Field: "receiver.name", Message: "is required"},
		{Field: "receiver.city", Message: "is required"},
	})
	require.True(t, HasCode(err, CodeValidation))
	assert.Len(t, ViolationsOf(err), 2)
	assert.Contains(t, err.Error(), "receiver.name")
	assert.Contains(t, err.Error(), "receiver.city")
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:        http.StatusBadRequest,
		CodeInvalidReference:  http.StatusUnprocessableEntity,
		CodeNotFound:          http.StatusNotFound,
		CodeForbidden:         http.StatusForbidden,
		CodeIllegalTransition: http.StatusConflict,
		CodeConflict:          http.StatusConflict,
		CodeInternal:          http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, ToHTTPStatus(code), string(code))
	}
}
