package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("edit: %w", ErrNotSender), http.StatusForbidden},
		{fmt.Errorf("get: %w", ErrChatNotFound), http.StatusNotFound},
		{ErrDuplicateInvitation, http.StatusConflict},
		{fmt.Errorf("%w: empty text", ErrInvalidInput), http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}
