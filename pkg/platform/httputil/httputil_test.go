package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "ddrc/pkg/domain-errors"
	"ddrc/pkg/platform/sentinel"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteErrorStatuses(t *testing.T) {
	tests := map[string]struct {
		err    error
		status int
		code   string
		desc   string
	}{
		"missing request": {
			err:    dErrors.Wrap(fmt.Errorf("request 42: %w", sentinel.ErrNotFound), dErrors.CodeNotFound, "request not found"),
			status: http.StatusNotFound,
			code:   "not_found",
			desc:   "request not found",
		},
		"already submitted": {
			err:    dErrors.New(dErrors.CodeConflict, "This request has already been submitted."),
			status: http.StatusConflict,
			code:   "conflict",
			desc:   "This request has already been submitted.",
		},
		"wrong status": {
			err:    dErrors.New(dErrors.CodeInvalidState, "request has not been submitted"),
			status: http.StatusConflict,
			code:   "invalid_state",
			desc:   "request has not been submitted",
		},
		"other user's request": {
			err:    dErrors.New(dErrors.CodeForbidden, "request does not belong to this session"),
			status: http.StatusForbidden,
			code:   "forbidden",
			desc:   "request does not belong to this session",
		},
		"bad limit": {
			err:    dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"),
			status: http.StatusBadRequest,
			code:   "bad_request",
			desc:   "limit must be a positive integer",
		},
		"missing admin token": {
			err:    dErrors.New(dErrors.CodeUnauthorized, "admin token required"),
			status: http.StatusUnauthorized,
			code:   "unauthorized",
			desc:   "admin token required",
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			body := decode(t, w)
			assert.Equal(t, tt.code, body["error"])
			assert.Equal(t, tt.desc, body["error_description"])
		})
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	t.Run("coded internal error", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.Wrap(errors.New("pq: connection reset"), dErrors.CodeInternal, "failed to list tasks"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decode(t, w)
		assert.Equal(t, "internal_error", body["error"])
		assert.NotContains(t, body, "error_description")
	})

	t.Run("uncoded error", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("smtp: 421 service not available"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decode(t, w)
		assert.Equal(t, "internal_error", body["error"])
		assert.NotContains(t, body, "error_description")
	})
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusAccepted, map[string]int64{"task_id": 7})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"task_id":7}`, w.Body.String())
}
