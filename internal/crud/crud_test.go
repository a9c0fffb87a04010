package crud

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecampus/campus-core/pkg/apperror"
)

func testContext(t *testing.T, query url.Values) echo.Context {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/?"+query.Encode(), nil)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec)
}

func TestPageParamsDefaults(t *testing.T) {
	skip, limit, err := pageParams(testContext(t, url.Values{}))
	require.NoError(t, err)
	assert.Equal(t, 0, skip)
	assert.Equal(t, defaultLimit, limit)
}

func TestPageParamsCapsLimit(t *testing.T) {
	skip, limit, err := pageParams(testContext(t, url.Values{
		"skip":  []string{"20"},
		"limit": []string{"99999"},
	}))
	require.NoError(t, err)
	assert.Equal(t, 20, skip)
	assert.Equal(t, maxLimit, limit)
}

func TestPageParamsRejectsBadValues(t *testing.T) {
	for _, query := range []url.Values{
		{"skip": []string{"-1"}},
		{"skip": []string{"abc"}},
		{"limit": []string{"0"}},
		{"limit": []string{"-5"}},
		{"limit": []string{"ten"}},
	} {
		_, _, err := pageParams(testContext(t, query))
		var appErr *apperror.Error
		require.ErrorAs(t, err, &appErr, "query %v", query)
		assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	}
}

func TestTranslateDBErrorUniqueViolation(t *testing.T) {
	err := translateDBError(&pgconn.PgError{Code: "23505"})
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)
}

func TestTranslateDBErrorBusy(t *testing.T) {
	for _, code := range []string{"40001", "40P01", "55P03"} {
		err := translateDBError(&pgconn.PgError{Code: code})
		var appErr *apperror.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, http.StatusServiceUnavailable, appErr.HTTPStatus, code)
		assert.Equal(t, 2, appErr.RetryAfter)
	}
}

func TestTranslateDBErrorTimeout(t *testing.T) {
	err := translateDBError(context.DeadlineExceeded)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.HTTPStatus)
}

func TestTranslateDBErrorPassesAppErrors(t *testing.T) {
	original := apperror.NewNotFound("course", "abc")
	assert.Same(t, original, translateDBError(original))
}

func TestTranslateDBErrorWrapsUnknown(t *testing.T) {
	err := translateDBError(errors.New("connection reset"))
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SRV_002", appErr.Code)
}

func TestTranslateDBErrorNil(t *testing.T) {
	assert.NoError(t, translateDBError(nil))
}
