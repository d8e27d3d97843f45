package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/djx/internal/shared"
	"golang.org/x/oauth2"
)

func TestBasicRouter(t *testing.T) {
	t.Run("method patterns and path values", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc(http.MethodPut, "/items/{id}", func(w http.ResponseWriter, req *http.Request) {
			fmt.Fprint(w, req.PathValue("id"))
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/items/42", nil))
		if rec.Body.String() != "42" {
			t.Errorf("expected path value, got %q", rec.Body.String())
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, req)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.HandleFunc(http.MethodGet, "/", func(w http.ResponseWriter, req *http.Request) {
			order = append(order, "handler")
		})
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("RequestID assigns and propagates", func(t *testing.T) {
		var seen string
		h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestIDFrom(r.Context())
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
			t.Errorf("expected matching ids, got %q and %q", seen, rec.Header().Get(RequestIDHeader))
		}

		incoming := shared.GenerateID()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, incoming)
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen != incoming {
			t.Errorf("expected incoming id to be reused, got %q", seen)
		}

		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "not a uuid\n")
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen == "not a uuid\n" {
			t.Error("malformed ids must be replaced")
		}
	})

	t.Run("Logging records status", func(t *testing.T) {
		var buf bytes.Buffer
		h := Logging(shared.NewLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

		out := buf.String()
		if !strings.Contains(out, "status=418") || !strings.Contains(out, "path=/brew") {
			t.Errorf("unexpected log line %q", out)
		}
	})

	t.Run("Recover returns 500", func(t *testing.T) {
		h := Recover(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "internal server error") {
			t.Errorf("unexpected response %d %s", rec.Code, rec.Body)
		}
	})
}

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"access","refresh_token":"refresh","token_type":"Bearer","expires_in":3600}`)
	}))
}

func oauthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8888/spotify/callback",
		Endpoint:     oauth2.Endpoint{AuthURL: tokenURL + "/authorize", TokenURL: tokenURL + "/token"},
	}
}

func TestOAuthHandler(t *testing.T) {
	tokens := newTokenServer(t)
	defer tokens.Close()

	t.Run("exchanges the code once", func(t *testing.T) {
		h := NewOAuthHandler(oauthConfig(tokens.URL), "xyz")
		if routes := h.Routes(); len(routes) != 1 || routes[0] != "GET /spotify/callback" {
			t.Fatalf("unexpected routes %v", routes)
		}

		r := NewBasicRouter()
		r.Handler(h)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spotify/callback?state=xyz&code=good", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body)
		}

		select {
		case res := <-h.Result():
			if res.Error() != nil || res.Token.AccessToken != "access" || res.Token.RefreshToken != "refresh" {
				t.Errorf("unexpected result %+v %v", res.Token, res.Error())
			}
		case <-time.After(time.Second):
			t.Fatal("no result")
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spotify/callback?state=xyz&code=good", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("second callback should be rejected, got %d", rec.Code)
		}
	})

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"bad state", "state=nope&code=good", http.StatusBadRequest},
		{"denied", "state=xyz&error=access_denied", http.StatusBadRequest},
		{"exchange fails", "state=xyz&code=bad", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOAuthHandler(oauthConfig(tokens.URL), "xyz")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spotify/callback?"+tt.query, nil))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
			res := <-h.Result()
			if res.Error() == nil {
				t.Error("expected an error result")
			}
		})
	}
}

func TestCallbackPath(t *testing.T) {
	tests := map[string]string{
		"http://localhost:8888/callback":  "/callback",
		"http://127.0.0.1:9000/auth/done": "/auth/done",
		"http://localhost:8888":           DefaultCallbackPath,
		"::bad":                           DefaultCallbackPath,
	}
	for in, want := range tests {
		if got := CallbackPath(in); got != want {
			t.Errorf("CallbackPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestListenAndServeShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer("127.0.0.1:0", http.NotFoundHandler())

	done := make(chan error, 1)
	go func() { done <- ListenAndServe(ctx, srv, nil) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
