package httpexec

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	queueErrors "github.com/c0deZ3R0/go-offline-kit/errors"
)

// recorder captures the last request seen by the fake backend.
type recorder struct {
	method  string
	path    string
	rawPath string
	body    map[string]interface{}
}

func newBackend(status int, response string, rec *recorder) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.rawPath = r.URL.EscapedPath()
		rec.body = nil
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&rec.body)
		}
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
}

func TestCreate(t *testing.T) {
	var rec recorder
	srv := newBackend(http.StatusCreated, `{"id":"evt-42"}`, &rec)
	defer srv.Close()

	client := NewClient(srv.URL)
	id, err := client.Create(context.Background(), map[string]interface{}{"titre": "Match"})
	require.NoError(t, err)
	assert.Equal(t, "evt-42", id)
	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/events", rec.path)
	assert.Equal(t, "Match", rec.body["titre"])
}

func TestJoin(t *testing.T) {
	var rec recorder
	srv := newBackend(http.StatusNoContent, "", &rec)
	defer srv.Close()

	client := NewClient(srv.URL)
	require.NoError(t, client.Join(context.Background(), "e1", "u1"))
	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/events/e1/participants", rec.path)
	assert.Equal(t, "u1", rec.body["user_id"])
}

func TestLeave(t *testing.T) {
	var rec recorder
	srv := newBackend(http.StatusNoContent, "", &rec)
	defer srv.Close()

	client := NewClient(srv.URL)
	require.NoError(t, client.Leave(context.Background(), "e1", "u1"))
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/events/e1/participants/u1", rec.path)
}

func TestUpdate(t *testing.T) {
	var rec recorder
	srv := newBackend(http.StatusOK, "{}", &rec)
	defer srv.Close()

	client := NewClient(srv.URL)
	require.NoError(t, client.Update(context.Background(), "e1", map[string]interface{}{"lieu": "Stade"}))
	assert.Equal(t, http.MethodPatch, rec.method)
	assert.Equal(t, "/events/e1", rec.path)
	assert.Equal(t, "Stade", rec.body["lieu"])
}

func TestDelete(t *testing.T) {
	var rec recorder
	srv := newBackend(http.StatusNoContent, "", &rec)
	defer srv.Close()

	client := NewClient(srv.URL)
	require.NoError(t, client.Delete(context.Background(), "e1"))
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/events/e1", rec.path)
}

func TestStatusErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantRetryable bool
		wantNotFound  bool
	}{
		{"unauthorized is terminal", http.StatusUnauthorized, false, false},
		{"forbidden is terminal", http.StatusForbidden, false, false},
		{"not found is terminal", http.StatusNotFound, false, true},
		{"request timeout is transient", http.StatusRequestTimeout, true, false},
		{"rate limited is transient", http.StatusTooManyRequests, true, false},
		{"server error is transient", http.StatusInternalServerError, true, false},
		{"bad gateway is transient", http.StatusBadGateway, true, false},
		{"bad request is terminal", http.StatusBadRequest, false, false},
		{"unprocessable is terminal", http.StatusUnprocessableEntity, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec recorder
			srv := newBackend(tt.status, "nope", &rec)
			defer srv.Close()

			client := NewClient(srv.URL)
			err := client.Delete(context.Background(), "e1")
			require.Error(t, err)
			assert.Equal(t, tt.wantRetryable, queueErrors.IsRetryable(err))
			assert.Equal(t, tt.wantNotFound, queueErrors.IsNotFound(err))
		})
	}
}

func TestNetworkFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(srv.URL)
	err := client.Join(context.Background(), "e1", "u1")
	require.Error(t, err)
	assert.True(t, queueErrors.IsRetryable(err))
}

func TestCreateRejectsMalformedResponse(t *testing.T) {
	var rec recorder
	srv := newBackend(http.StatusOK, "{broken", &rec)
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Create(context.Background(), map[string]interface{}{"titre": "x"})
	require.Error(t, err)
	assert.False(t, queueErrors.IsRetryable(err))
}

func TestPathEscaping(t *testing.T) {
	var rec recorder
	srv := newBackend(http.StatusNoContent, "", &rec)
	defer srv.Close()

	client := NewClient(srv.URL)
	require.NoError(t, client.Leave(context.Background(), "e/1", "u 1"))
	assert.Equal(t, "/events/e%2F1/participants/u%201", rec.rawPath)
}

func TestBaseURLTrailingSlashTrimmed(t *testing.T) {
	client := NewClient("http://example.com/")
	assert.Equal(t, "http://example.com", client.BaseURL())
}
