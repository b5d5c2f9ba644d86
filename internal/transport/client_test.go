package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSend(t *testing.T) {
	var (
		gotMethod      string
		gotBody        string
		gotContentType string
		gotAuth        string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"UP"}`))
	}))
	defer srv.Close()

	client := NewClient(time.Second)
	resp, err := client.Send(context.Background(), Request{
		Method:  "post",
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer abc"},
		Body:    map[string]any{"user": "monitor"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"status":"UP"}`, string(resp.Body))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, `{"user":"monitor"}`, gotBody)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "Bearer abc", gotAuth)
}

func TestClientSendStringBodyIsRaw(t *testing.T) {
	var gotBody, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotContentType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	_, err := NewClient(time.Second).Send(context.Background(), Request{Method: http.MethodPut, URL: srv.URL, Body: "plain"})
	require.NoError(t, err)
	assert.Equal(t, "plain", gotBody)
	assert.Empty(t, gotContentType)
}

func TestClientSendStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("down"))
	}))
	defer srv.Close()

	resp, err := NewClient(time.Second).Send(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "request failed with status code 503", err.Error())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	code, ok := StatusCodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestClientSendTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(50 * time.Millisecond).Send(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)

	_, ok := StatusCodeOf(err)
	assert.False(t, ok)
}

func TestDecodeBody(t *testing.T) {
	assert.Equal(t, map[string]any{"a": float64(1)}, DecodeBody([]byte(`{"a":1}`)))
	assert.Equal(t, []any{"x"}, DecodeBody([]byte(` ["x"] `)))
	assert.Equal(t, "plain text", DecodeBody([]byte("plain text")))
	assert.Equal(t, "", DecodeBody(nil))
}
