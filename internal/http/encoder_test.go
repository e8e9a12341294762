package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoderStatusResponse(t *testing.T) {
	enc := encoder{}

	rr := httptest.NewRecorder()
	enc.StatusResponse(context.Background(), rr, map[string]string{"message": "queued"}, http.StatusAccepted)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "queued", body["message"])
}

func TestEncoderStatusResponseWithoutBody(t *testing.T) {
	enc := encoder{}

	rr := httptest.NewRecorder()
	enc.StatusResponse(context.Background(), rr, nil, http.StatusOK)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Empty(t, rr.Header().Get("Content-Type"))
}

func TestEncoderStatusCreatedData(t *testing.T) {
	enc := encoder{}

	rr := httptest.NewRecorder()
	enc.StatusCreatedData(rr, map[string]int{"id": 7})

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":7}`, rr.Body.String())
}

func TestEncoderStatusOnlyHelpers(t *testing.T) {
	enc := encoder{}

	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
	}{
		{"created", func(w http.ResponseWriter) { enc.StatusCreated(w) }, http.StatusCreated},
		{"no content", func(w http.ResponseWriter) { enc.NoContent(w) }, http.StatusNoContent},
		{"not found", func(w http.ResponseWriter) { enc.StatusNotFound(context.Background(), w) }, http.StatusNotFound},
		{"internal error", func(w http.ResponseWriter) { enc.StatusInternalError(w) }, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.write(rr)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Empty(t, rr.Body.String())
		})
	}
}

func TestEncoderError(t *testing.T) {
	enc := encoder{}

	rr := httptest.NewRecorder()
	enc.Error(rr, errors.New("sync user lookup failed"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	var body errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "sync user lookup failed", body.Message)
	assert.Zero(t, body.Status)
}
