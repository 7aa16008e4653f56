package pushapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"karmaterra-backend/internal/push/domain"
	"karmaterra-backend/internal/push/repository"
)

func staticToken(userID string) (string, error) {
	return "token-for-" + userID, nil
}

func TestUpsertSendsBearerAndBody(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.Method + " " + r.URL.EscapedPath()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", staticToken)
	if err := c.Upsert(context.Background(), "user-1", "tok-1", domain.PlatformIOS, time.Now()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if gotAuth != "Bearer token-for-user-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "POST /api/push/tokens" {
		t.Errorf("request = %q", gotPath)
	}
	if gotBody["token"] != "tok-1" || gotBody["platform"] != "ios" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestDeleteEscapesToken(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, staticToken)
	if err := c.Delete(context.Background(), "user-1", "abc/def:1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gotPath != "/api/push/tokens/abc%2Fdef:1" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind repository.ErrorKind
		notFound bool
	}{
		{name: "unavailable", status: http.StatusServiceUnavailable, wantKind: repository.KindTransient},
		{name: "too many requests", status: http.StatusTooManyRequests, wantKind: repository.KindTransient},
		{name: "conflict", status: http.StatusConflict, wantKind: repository.KindConflict},
		{name: "bad request", status: http.StatusBadRequest, wantKind: repository.KindFatal},
		{name: "unauthorized", status: http.StatusUnauthorized, wantKind: repository.KindFatal},
		{name: "not found", status: http.StatusNotFound, notFound: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()

			err := New(srv.URL, staticToken).MarkRead(context.Background(), "user-1", "n-1", time.Now())
			if tt.notFound {
				if !errors.Is(err, repository.ErrNotFound) {
					t.Errorf("err = %v, want ErrNotFound", err)
				}
				return
			}
			if got := repository.KindOf(err); got != tt.wantKind {
				t.Errorf("kind = %v, want %v (err %v)", got, tt.wantKind, err)
			}
			var se *StatusError
			if !errors.As(err, &se) || se.Status != tt.status || se.Message != "nope" {
				t.Errorf("status error = %+v", se)
			}
		})
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := New(url, staticToken).Upsert(context.Background(), "user-1", "tok", domain.PlatformAndroid, time.Now())
	if !repository.IsTransient(err) {
		t.Errorf("err = %v, want transient", err)
	}
}

func TestTokenSourceFailureIsFatal(t *testing.T) {
	failing := func(string) (string, error) { return "", errors.New("no credentials") }
	err := New("http://127.0.0.1:1", failing).Upsert(context.Background(), "user-1", "tok", domain.PlatformAndroid, time.Now())
	if !repository.IsFatal(err) {
		t.Errorf("err = %v, want fatal", err)
	}
}

func TestServerFatalKindIsNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"attempt to write a readonly database","kind":"fatal"}`))
	}))
	defer srv.Close()

	err := New(srv.URL, staticToken).Upsert(context.Background(), "user-1", "tok", domain.PlatformAndroid, time.Now())
	if !repository.IsFatal(err) {
		t.Errorf("err = %v, want fatal", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusInternalServerError {
		t.Errorf("status error = %+v", se)
	}
}
