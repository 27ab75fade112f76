package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/autoplaylist/internal/shared"
)

func TestGroqClient(t *testing.T) {
	params := CompletionParams{Model: "llama-3.1-8b-instant", Temperature: 0.1, MaxTokens: 4096}

	t.Run("Missing Key", func(t *testing.T) {
		if _, err := NewGroqClient("", "", 0); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Complete", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer gsk_test" {
				t.Errorf("unexpected authorization %q", got)
			}

			var req chatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}
			if req.Model != params.Model || req.Temperature != 0.1 || req.MaxTokens != 4096 {
				t.Errorf("unexpected params %+v", req)
			}
			if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "hello" {
				t.Errorf("unexpected messages %+v", req.Messages)
			}

			fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"  [{\"language\":\"English\"}]\n"}}]}`)
		}))
		defer ts.Close()

		client, err := NewGroqClient("gsk_test", ts.URL+"/", 0)
		if err != nil {
			t.Fatalf("NewGroqClient() error = %v", err)
		}

		got, err := client.Complete(context.Background(), "hello", params)
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if got != `[{"language":"English"}]` {
			t.Errorf("Complete() = %q", got)
		}
	})

	t.Run("Error Responses", func(t *testing.T) {
		tc := []struct {
			name   string
			status int
			body   string
		}{
			{name: "server error", status: http.StatusInternalServerError, body: "boom"},
			{name: "rate limited", status: http.StatusTooManyRequests, body: "slow down"},
			{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
			{name: "malformed", status: http.StatusOK, body: `not json`},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					fmt.Fprint(w, tt.body)
				}))
				defer ts.Close()

				client, err := NewGroqClient("gsk_test", ts.URL, 0)
				if err != nil {
					t.Fatalf("NewGroqClient() error = %v", err)
				}

				if _, err := client.Complete(context.Background(), "hello", params); !errors.Is(err, shared.ErrInferenceFailed) {
					t.Errorf("expected ErrInferenceFailed, got %v", err)
				}
			})
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		client, err := NewGroqClient("gsk_test", "http://127.0.0.1:1", 1)
		if err != nil {
			t.Fatalf("NewGroqClient() error = %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := client.Complete(ctx, "hello", params); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}
