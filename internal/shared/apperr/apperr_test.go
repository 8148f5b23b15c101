package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{InvalidErr("bad", nil), http.StatusBadRequest},
		{NotFoundErr("nope"), http.StatusNotFound},
		{UnauthorizedErr("login"), http.StatusUnauthorized},
		{ForbiddenErr("no"), http.StatusForbidden},
		{ConflictErr("dup"), http.StatusConflict},
		{RateLimitedErr("slow down"), http.StatusTooManyRequests},
		{Wrap(errors.New("db down")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
		{fmt.Errorf("ctx: %w", NotFoundErr("wrapped")), http.StatusNotFound},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestWrapKeepsAppError(t *testing.T) {
	orig := ConflictErr("already exists")
	assert.Same(t, orig, Wrap(fmt.Errorf("outer: %w", orig)))
	assert.Nil(t, Wrap(nil))
}

func TestPublicMessageHidesInternals(t *testing.T) {
	err := Wrap(errors.New("dial tcp 10.0.0.1:3306: connection refused"))
	assert.Equal(t, genericMessage, PublicMessage(err))
	assert.Equal(t, "Product not found.", PublicMessage(NotFoundErr("Product not found.")))
}
