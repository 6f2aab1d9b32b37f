package store

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("order o1: %w", ErrNotFound):       http.StatusNotFound,
		ErrRuleConflict:                               http.StatusConflict,
		fmt.Errorf("%w: Placed", ErrInvalidTransition): http.StatusConflict,
		ErrEmptyCart:                                  http.StatusBadRequest,
		ErrNoAddress:                                  http.StatusBadRequest,
		ErrInvalidQuantity:                            http.StatusBadRequest,
		errors.New("disk full"):                       http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}
