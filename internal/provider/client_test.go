package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gstdocai/backend/internal/prompt"
)

func TestComplete_Success(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Dear Acme,\nGreetings.  "}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "test-key", "", 5*time.Second)
	text, err := c.Complete(context.Background(), prompt.Prompt{System: "sys", User: "usr"})
	require.NoError(t, err)

	assert.Equal(t, "Dear Acme,\nGreetings.", text)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, DefaultTemperature, got.Temperature)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: "sys"}, got.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "usr"}, got.Messages[1])
}

func TestComplete_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", "sonar", time.Second).Complete(context.Background(), prompt.Prompt{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
}

func TestComplete_EmptyCompletion(t *testing.T) {
	for name, body := range map[string]string{
		"no choices":   `{"choices":[]}`,
		"null content": `{"choices":[{"message":{"content":null}}]}`,
		"blank text":   `{"choices":[{"message":{"content":"   "}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "", "", time.Second).Complete(context.Background(), prompt.Prompt{})
			assert.ErrorIs(t, err, ErrEmptyCompletion)
		})
	}
}

func TestComplete_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", "", time.Second).Complete(context.Background(), prompt.Prompt{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyCompletion)
}

func TestComplete_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewClient(srv.URL, "", "", 0).Complete(ctx, prompt.Prompt{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
