package beacon

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchCachesResult(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		data, err := store.Fetch(ctx, srv.URL)
		if err != nil {
			t.Fatalf("Fetch %d failed: %v", i, err)
		}
		if string(data) != "hello" {
			t.Fatalf("Fetch %d returned %q", i, data)
		}
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("server saw %d requests, want 1", n)
	}
}

func TestFetchDedupesConcurrentRequests(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := store.Fetch(ctx, srv.URL)
			if err != nil {
				t.Errorf("Fetch failed: %v", err)
				return
			}
			if string(data) != "hello" {
				t.Errorf("Fetch returned %q", data)
			}
		}()
	}
	wg.Wait()

	if n := requests.Load(); n != 1 {
		t.Errorf("server saw %d requests, want 1", n)
	}
}

func TestFetchDifferentURLsDoNotBlockEachOther(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte("slow"))
	})
	mux.HandleFunc("/fast", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fast"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer close(release)

	store := NewMemoryStore()
	ctx := context.Background()

	slowStarted := make(chan struct{})
	go func() {
		close(slowStarted)
		store.Fetch(ctx, srv.URL+"/slow")
	}()
	<-slowStarted
	time.Sleep(50 * time.Millisecond) // let the slow fetch take its entry lock

	done := make(chan error, 1)
	go func() {
		_, err := store.Fetch(ctx, srv.URL+"/fast")
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("fast Fetch failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fast Fetch blocked behind the slow URL")
	}
}

func TestFetchSharesCachedError(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := store.Fetch(ctx, srv.URL)
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
			t.Fatalf("Fetch %d: got %v, want StatusError 500", i, err)
		}
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("server saw %d requests, want 1 (error not cached)", n)
	}
}

func TestSimpleFetchLifetime(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		cacheControl string
		lifetime     time.Duration
		wantErr      bool
	}{
		{"no header", 200, "", 60 * time.Second, false},
		{"short max-age is floored", 200, "max-age=10", 60 * time.Second, false},
		{"long max-age is honored", 200, "public, max-age=120", 120 * time.Second, false},
		{"error", 404, "", 3 * time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.cacheControl != "" {
					w.Header().Set("Cache-Control", tt.cacheControl)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte("body"))
			}))
			defer srv.Close()

			_, lifetime, err := SimpleFetch(context.Background(), http.DefaultClient, 5*time.Second, srv.URL)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if lifetime != tt.lifetime {
				t.Errorf("lifetime = %v, want %v", lifetime, tt.lifetime)
			}
		})
	}
}

func TestSimpleFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	_, lifetime, err := SimpleFetch(context.Background(), http.DefaultClient, 10*time.Millisecond, srv.URL)
	if err == nil {
		t.Fatal("want timeout error")
	}
	if lifetime != 3*time.Second {
		t.Errorf("lifetime = %v, want 3s", lifetime)
	}
}

func TestParseMaxAge(t *testing.T) {
	tests := []struct {
		header string
		age    time.Duration
		ok     bool
	}{
		{"max-age=120", 120 * time.Second, true},
		{"no-cache, max-age=90", 90 * time.Second, true},
		{" max-age=5 , private", 5 * time.Second, true},
		{"max-age=", 0, false},
		{"max-age=oops", 0, false},
		{"no-store", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		age, ok := parseMaxAge(tt.header)
		if age != tt.age || ok != tt.ok {
			t.Errorf("parseMaxAge(%q) = %v, %v; want %v, %v", tt.header, age, ok, tt.age, tt.ok)
		}
	}
}

func TestNonceSingleUse(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	nonce, err := store.NewNonce(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("NewNonce failed: %v", err)
	}

	if ok, err := store.ConsumeNonce(ctx, nonce, "other@example.com"); err != nil || ok {
		t.Fatalf("ConsumeNonce with wrong email = %v, %v; want false", ok, err)
	}
	if ok, err := store.ConsumeNonce(ctx, nonce, "user@example.com"); err != nil || !ok {
		t.Fatalf("first ConsumeNonce = %v, %v; want true", ok, err)
	}
	if ok, err := store.ConsumeNonce(ctx, nonce, "user@example.com"); err != nil || ok {
		t.Fatalf("second ConsumeNonce = %v, %v; want false", ok, err)
	}
}

func TestGenerateNonce(t *testing.T) {
	a, b := GenerateNonce(), GenerateNonce()
	if a == b {
		t.Fatal("two nonces are identical")
	}
	data, err := base64.RawURLEncoding.DecodeString(a)
	if err != nil {
		t.Fatalf("nonce is not URL-safe base64: %v", err)
	}
	if len(data) != 16 {
		t.Errorf("nonce carries %d bytes of randomness, want 16", len(data))
	}
}
