package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/autoplaylist/internal/shared"
	"golang.org/x/oauth2"
)

// fakeAuth issues tokens derived from the code it receives.
type fakeAuth struct {
	exchangeErr error
	refreshErr  error
}

func (f *fakeAuth) GetAuthURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + state
}

func (f *fakeAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &oauth2.Token{AccessToken: "access-" + code, RefreshToken: "refresh-" + code}, nil
}

func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &oauth2.Token{AccessToken: "new-access", RefreshToken: refreshToken}, nil
}

func TestCallbackHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		h := NewCallbackHandler(&fakeAuth{}, "s1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=abc", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := <-h.Done()
		if result.Err != nil {
			t.Fatalf("unexpected error %v", result.Err)
		}
		if result.Token.AccessToken != "access-abc" {
			t.Errorf("unexpected token %+v", result.Token)
		}
	})

	t.Run("Rejected Redirects", func(t *testing.T) {
		tc := []struct {
			name   string
			query  string
			want   error
			detail string
		}{
			{name: "State Mismatch", query: "?state=other&code=abc", want: shared.ErrInvalidInput, detail: "state does not match"},
			{name: "Missing State", query: "?code=abc", want: shared.ErrInvalidInput, detail: "state does not match"},
			{
				name:   "Consent Declined",
				query:  "?state=s1&error=access_denied&error_description=The+user+denied+access",
				want:   shared.ErrAuthFailed,
				detail: "access_denied: The user denied access",
			},
			{name: "Error Without Description", query: "?state=s1&error=invalid_scope", want: shared.ErrAuthFailed, detail: "spotify returned invalid_scope"},
			{name: "Missing Code", query: "?state=s1", want: shared.ErrMissingArgument, detail: "code"},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				h := NewCallbackHandler(&fakeAuth{}, "s1")
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback"+tt.query, nil))

				if rec.Code != http.StatusBadRequest {
					t.Errorf("expected 400, got %d", rec.Code)
				}
				result := <-h.Done()
				if !errors.Is(result.Err, tt.want) {
					t.Fatalf("expected %v, got %v", tt.want, result.Err)
				}
				if !strings.Contains(result.Err.Error(), tt.detail) {
					t.Errorf("expected %q in %q", tt.detail, result.Err)
				}
				if !strings.Contains(rec.Body.String(), tt.detail) {
					t.Errorf("expected the page to show %q, got %q", tt.detail, rec.Body.String())
				}
			})
		}
	})

	t.Run("Exchange Failure", func(t *testing.T) {
		boom := errors.New("boom")
		h := NewCallbackHandler(&fakeAuth{exchangeErr: boom}, "s1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=abc", nil))

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
		result := <-h.Done()
		if !errors.Is(result.Err, boom) || !errors.Is(result.Err, shared.ErrAuthFailed) {
			t.Errorf("expected wrapped exchange error, got %v", result.Err)
		}
	})

	t.Run("Second Callback Rejected", func(t *testing.T) {
		h := NewCallbackHandler(&fakeAuth{}, "s1")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=abc", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=xyz", nil))
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}

		result := <-h.Done()
		if result.Token == nil || result.Token.AccessToken != "access-abc" {
			t.Errorf("expected only the first result, got %+v", result)
		}
		if _, open := <-h.Done(); open {
			t.Error("expected the result channel to be closed")
		}
	})
}
