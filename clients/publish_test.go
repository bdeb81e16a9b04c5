package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transcripts", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "session_x", body["session_id"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"stored","id":"t-1"}`))
	}))
	defer srv.Close()

	out, err := NewHTTP(0).Publish(context.Background(), srv.URL, map[string]string{"session_id": "session_x"})
	require.NoError(t, err)
	assert.Equal(t, &PublishResp{Status: "stored", ID: "t-1"}, out)
}

func TestPublish_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "schema mismatch", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewHTTP(0).Publish(context.Background(), srv.URL, struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema mismatch")
}

func TestPublish_EncodeError(t *testing.T) {
	_, err := NewHTTP(0).Publish(context.Background(), "http://unused", map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish encode")
}
