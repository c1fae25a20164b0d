package fcm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Enabled(t *testing.T) {
	assert.True(t, NewClient("", "key", time.Second).Enabled())
	assert.False(t, NewClient("", "", time.Second).Enabled())
}

func TestClient_Send(t *testing.T) {
	var (
		gotAuth string
		gotBody map[string]interface{}
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-server-key", time.Second)

	err := client.Send(context.Background(), "recipient-token", Notification{
		Title: "سؤال جديد",
		Body:  "فئة: general\nsome question text",
		Data:  map[string]string{"question_id": "abc"},
	})
	require.NoError(t, err)

	assert.Equal(t, "key=test-server-key", gotAuth)
	assert.Equal(t, "recipient-token", gotBody["to"])

	notification, ok := gotBody["notification"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "سؤال جديد", notification["title"])
	assert.Equal(t, "default", notification["sound"])

	data, ok := gotBody["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "abc", data["question_id"])
}

func TestClient_Send_NilDataSerializedAsObject(t *testing.T) {
	var gotBody map[string]json.RawMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key", time.Second)

	err := client.Send(context.Background(), "token", Notification{Title: "t", Body: "b"})
	require.NoError(t, err)

	assert.JSONEq(t, `{}`, string(gotBody["data"]))
}

func TestClient_Send_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bad-key", time.Second)

	err := client.Send(context.Background(), "token", Notification{Title: "t", Body: "b"})
	assert.Error(t, err)
}
