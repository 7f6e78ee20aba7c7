package errors

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	ierrors "github.com/hrygo/strawbean/internal/errors"
)

func TestToResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ierrors.ErrorCode
		wantMsg    string
	}{
		{"parse", ierrors.ParseError("bad time"), http.StatusBadRequest, ierrors.ErrCodeParse, "bad time"},
		{"past", ierrors.PastInstantUnresolvable("too old"), http.StatusBadRequest, ierrors.ErrCodePastInstantUnresolvable, "too old"},
		{"invalid", ierrors.InvalidArgument("nope"), http.StatusBadRequest, ierrors.ErrCodeInvalidArgument, "nope"},
		{"not found wrapped", fmt.Errorf("get: %w", ierrors.NotFound("no reminder #3")), http.StatusNotFound, ierrors.ErrCodeNotFound, "no reminder #3"},
		{"unauthorized", ierrors.Unauthorized("who"), http.StatusUnauthorized, ierrors.ErrCodeUnauthorized, "who"},
		{"rate limited", ierrors.RateLimitExceeded("slow"), http.StatusTooManyRequests, ierrors.ErrCodeRateLimitExceeded, "slow"},
		{"internal hidden", ierrors.Wrap(fmt.Errorf("disk on fire"), ierrors.ErrCodeInternal, "failed"), http.StatusInternalServerError, ierrors.ErrCodeInternal, "Internal Server Error"},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError, ierrors.ErrCodeInternal, "Internal Server Error"},
		{"echo 404", echo.ErrNotFound, http.StatusNotFound, ierrors.ErrCodeNotFound, "Not Found"},
		{"echo 405", echo.ErrMethodNotAllowed, http.StatusMethodNotAllowed, ierrors.ErrCodeInvalidArgument, "Method Not Allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ToResponse(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Message)
		})
	}
}

func TestHTTPErrorHandler(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler(nil)
	e.GET("/fail", func(c echo.Context) error {
		return ierrors.NotFound("no reminder #9")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"code":"NOT_FOUND","message":"no reminder #9"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"code":"NOT_FOUND","message":"Not Found"}`, rec.Body.String())
}
