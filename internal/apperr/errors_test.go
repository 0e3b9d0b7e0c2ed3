package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("loading patient: %w", NotFound("patient %q not found", "alice"))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(nil, KindNotFound))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestError_MessageIncludesCause(t *testing.T) {
	err := Upstream("model request failed", errors.New("429 too many requests"))
	assert.Equal(t, "model request failed: 429 too many requests", err.Error())
	assert.Equal(t, "patient exists", AlreadyExists("patient exists").Error())
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:      http.StatusNotFound,
		KindAlreadyExists: http.StatusBadRequest,
		KindInvalidInput:  http.StatusBadRequest,
		KindUnauthorized:  http.StatusUnauthorized,
		KindUpstream:      http.StatusInternalServerError,
		KindUnavailable:   http.StatusInternalServerError,
		KindInternal:      http.StatusInternalServerError,
	}
	for k, want := range cases {
		assert.Equal(t, want, HTTPStatus(k), string(k))
	}
}
