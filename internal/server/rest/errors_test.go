package rest

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/catalogauth/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestToHTTPError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		detail bool
	}{
		{common.ErrorUnauthorized, http.StatusUnauthorized, false},
		{fmt.Errorf("%w: bad", common.ErrorValidation), http.StatusBadRequest, true},
		{fmt.Errorf("%w: sig", common.ErrInvalidToken), http.StatusBadRequest, true},
		{fmt.Errorf("%w: dup", common.ErrorConflict), http.StatusConflict, true},
		{fmt.Errorf("%w: down", common.ErrorPersistence), http.StatusInternalServerError, false},
		{errors.New("anything"), http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			e := toHTTPError(tt.err)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.detail, e.Detail != "")
		})
	}
}

func TestHTTPError_WithDetail(t *testing.T) {
	e := errBadRequest.WithDetail("x")
	assert.Equal(t, "Bad request: x", e.Error())
	assert.Empty(t, errBadRequest.Detail, "base error must not be mutated")
}
