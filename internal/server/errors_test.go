package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/jobtrust/internal/schemas"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"email exists", &ErrEmailAlreadyExists{Email: "a@b.c"}, http.StatusConflict},
		{"bad credentials", &ErrInvalidCredentials{}, http.StatusUnauthorized},
		{"password mismatch", &ErrPasswordMismatch{}, http.StatusUnauthorized},
		{"user missing", &ErrUserNotFound{UserID: uuid.New()}, http.StatusNotFound},
		{"analysis missing", &ErrAnalysisNotFound{}, http.StatusNotFound},
		{"validation", &ErrValidation{Message: "x"}, http.StatusBadRequest},
		{"schema", &schemas.ValidationError{Errors: []schemas.FieldError{{Field: "(root)", Message: "bad"}}}, http.StatusBadRequest},
		{"wrapped", fmt.Errorf("op: %w", &ErrInvalidCredentials{}), http.StatusUnauthorized},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "plain", (&ErrValidation{Message: "plain"}).Error())
	assert.Equal(t, "validation error: id - bad", (&ErrValidation{Field: "id", Message: "bad"}).Error())
	assert.Equal(t, "no analyses found", (&ErrAnalysisNotFound{}).Error())

	id := uuid.New()
	assert.Equal(t, "analysis not found: "+id.String(), (&ErrAnalysisNotFound{ID: id}).Error())
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "internal server error", publicMessage(errors.New("pq: connection refused")))
	assert.Equal(t, "invalid email or password", publicMessage(&ErrInvalidCredentials{}))
}
