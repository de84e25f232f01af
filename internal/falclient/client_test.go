package falclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/colorify-app/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPollInterval = 5 * time.Second

func newTestClient(t *testing.T, serverURL string) (*Client, *clock.Mock) {
	t.Helper()
	cfg := &config.Config{
		FalAPIKey:              "test-key",
		FalQueueURL:            serverURL,
		FalRequestTimeout:      10 * time.Second,
		GenerationPollInterval: testPollInterval,
		GenerationMaxPolls:     60,
	}
	c := NewClient(cfg, nil)
	mock := clock.NewMock()
	c.clock = mock
	return c, mock
}

// generateAsync runs Generate in a goroutine and keeps advancing the mock
// clock until it returns, so poll waits cost no real time.
func generateAsync(t *testing.T, c *Client, mock *clock.Mock) (*Result, error) {
	t.Helper()

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := c.Generate(context.Background(), GenerateRequest{
			Prompt:   "coloring page",
			ImageURL: "https://example.com/photo.jpg",
		})
		done <- outcome{res, err}
	}()

	deadline := time.After(10 * time.Second)
	for {
		select {
		case out := <-done:
			return out.res, out.err
		case <-deadline:
			t.Fatal("Generate did not finish")
		default:
			mock.Add(testPollInterval)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestGenerateSynchronousResult(t *testing.T) {
	var polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Key test-key", r.Header.Get("Authorization"))
		atomic.AddInt32(&polls, 1)
		json.NewEncoder(w).Encode(Result{Images: []Image{{URL: "https://cdn.example.com/x.jpg"}}})
	}))
	defer server.Close()

	c, mock := newTestClient(t, server.URL)
	res, err := generateAsync(t, c, mock)
	require.NoError(t, err)
	require.Len(t, res.Images, 1)
	assert.Equal(t, "https://cdn.example.com/x.jpg", res.Images[0].URL)
	assert.Equal(t, int32(1), atomic.LoadInt32(&polls), "inline result must skip polling")
}

func TestGeneratePollsUntilCompleted(t *testing.T) {
	var statusCalls int32

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"request_id":   "req-1",
			"status_url":   server.URL + "/status",
			"response_url": server.URL + "/result",
		})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&statusCalls, 1)
		status := "IN_PROGRESS"
		if n >= 3 {
			status = "COMPLETED"
		}
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	mux.HandleFunc("/result", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Result{Images: []Image{{URL: "https://cdn.example.com/y.jpg"}}})
	})

	c, mock := newTestClient(t, server.URL+"/submit")
	res, err := generateAsync(t, c, mock)
	require.NoError(t, err)
	require.Len(t, res.Images, 1)
	assert.Equal(t, "https://cdn.example.com/y.jpg", res.Images[0].URL)
	assert.Equal(t, int32(3), atomic.LoadInt32(&statusCalls), "exactly three status polls expected")
}

func TestGenerateJobFailed(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"request_id":   "req-2",
			"status_url":   server.URL + "/status",
			"response_url": server.URL + "/result",
		})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "FAILED", "error": "nsfw content"})
	})

	c, mock := newTestClient(t, server.URL+"/submit")
	_, err := generateAsync(t, c, mock)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobFailed)
	assert.Contains(t, err.Error(), "nsfw content")
}

func TestGenerateTimesOutAfterMaxPolls(t *testing.T) {
	var statusCalls int32

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"request_id":   "req-3",
			"status_url":   server.URL + "/status",
			"response_url": server.URL + "/result",
		})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&statusCalls, 1)
		json.NewEncoder(w).Encode(map[string]string{"status": "IN_QUEUE"})
	})

	c, mock := newTestClient(t, server.URL+"/submit")
	_, err := generateAsync(t, c, mock)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobTimeout)
	assert.Equal(t, int32(60), atomic.LoadInt32(&statusCalls))
}

func TestGenerateSubmitRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"detail":"invalid image_url"}`)
	}))
	defer server.Close()

	c, mock := newTestClient(t, server.URL)
	_, err := generateAsync(t, c, mock)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSubmission))
}
