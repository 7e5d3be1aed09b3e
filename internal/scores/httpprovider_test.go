package scores_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-grades/internal/scores"
)

// fake assessment service: token endpoint plus per-learner score rows.
func newScoreAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("token: ParseForm: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("token: unexpected grant_type=%q", r.PostForm.Get("grant_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/learners/u1/scores/p1", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"raw_earned": 2, "raw_possible": 5, "weight": 10, "graded": true, "extra": "ignored"}`))
	})
	mux.HandleFunc("/learners/u1/scores/p2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"raw_earned": 1, "raw_possible": 3, "weight": null, "graded": false}`))
	})
	mux.HandleFunc("/learners/u1/scores/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return httptest.NewServer(mux)
}

func TestHTTPProviderLeafScore(t *testing.T) {
	ts := newScoreAPI(t)
	defer ts.Close()

	p := scores.NewHTTPProvider(scores.HTTPConfig{
		BaseURL:      ts.URL,
		TokenURL:     ts.URL + "/oauth/token",
		ClientID:     "x",
		ClientSecret: "y",
		Timeout:      5 * time.Second,
	})
	ctx := context.Background()

	s, ok, err := p.LeafScore(ctx, "u1", "p1")
	if err != nil || !ok {
		t.Fatalf("p1: ok=%v err=%v", ok, err)
	}
	if s.RawEarned != 2 || s.RawPossible != 5 || s.Weight == nil || *s.Weight != 10 || !s.Graded {
		t.Fatalf("p1 decoded wrong: %+v", s)
	}

	s, ok, err = p.LeafScore(ctx, "u1", "p2")
	if err != nil || !ok {
		t.Fatalf("p2: ok=%v err=%v", ok, err)
	}
	if s.Weight != nil || s.Graded {
		t.Fatalf("p2 should have null weight and graded=false: %+v", s)
	}

	if _, ok, err := p.LeafScore(ctx, "u1", "missing"); err != nil || ok {
		t.Fatalf("missing block should be absent, not an error: ok=%v err=%v", ok, err)
	}

	if _, _, err := p.LeafScore(ctx, "u1", "boom"); err == nil {
		t.Fatalf("expected error on upstream 500")
	}
}

func TestHTTPProviderNoAuth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/learners/u1/scores/p1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("expected no Authorization header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"raw_earned": 4, "raw_possible": 4, "graded": true}`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	p := scores.NewHTTPProvider(scores.HTTPConfig{BaseURL: ts.URL + "/"})
	s, ok, err := p.LeafScore(context.Background(), "u1", "p1")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if s.RawEarned != 4 || s.Weight != nil {
		t.Fatalf("unexpected score: %+v", s)
	}
}
