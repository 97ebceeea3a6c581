package beacon

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// Cache lifespan applied to failed fetches, so transient errors are
	// retried soon but not hammered.
	errorCacheLifetime = 3 * time.Second
	// Minimum cache lifespan applied to successful fetches, even when the
	// server asks for less. A longer Cache-Control max-age is honored.
	minCacheLifetime = 60 * time.Second

	defaultFetchTimeout = 30 * time.Second
)

// MemoryStore is a Store implementation that keeps everything in memory.
//
// This is the Store a Client uses when none is configured explicitly.
//
// Note that the cache in this store only grows. For clients that only talk
// to a trusted broker (the default), this is fine, because only a couple of
// URLs are fetched periodically.
//
// This store only functions correctly if the application is a single
// process. When running multiple workers, the processes will not be able to
// recognize each other's sessions.
//
// Restarting the application also causes a complete loss of all sessions.
// For low traffic sites this may be fine, because sessions are short-lived.
type MemoryStore struct {
	client  *http.Client
	timeout time.Duration

	// Each cache entry carries its own lock, so a slow fetch of one URL
	// never delays a fetch of another. Entries are never evicted.
	cacheMu sync.Mutex
	cache   map[string]*cacheEntry

	noncesMu sync.Mutex
	nonces   map[noncePair]struct{}
}

type cacheEntry struct {
	mu      sync.Mutex
	data    []byte
	err     error
	expires time.Time
}

type noncePair struct {
	nonce string
	email string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store with a default configuration: the default
// HTTP client and a timeout of 30 seconds per request.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClient(http.DefaultClient, defaultFetchTimeout)
}

// NewMemoryStoreWithClient creates a store that uses the given HTTP client,
// with the given timeout applied to each request.
func NewMemoryStoreWithClient(client *http.Client, timeout time.Duration) *MemoryStore {
	return &MemoryStore{
		client:  client,
		timeout: timeout,
		cache:   make(map[string]*cacheEntry),
		nonces:  make(map[noncePair]struct{}),
	}
}

// Fetch implements Store. Results, including failures, are cached per URL;
// while a request is in flight, other callers for the same URL wait for its
// result instead of issuing their own request.
func (s *MemoryStore) Fetch(ctx context.Context, url string) ([]byte, error) {
	s.cacheMu.Lock()
	entry := s.cache[url]
	if entry == nil {
		entry = &cacheEntry{}
		s.cache[url] = entry
	}
	s.cacheMu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !time.Now().Before(entry.expires) {
		data, lifetime, err := SimpleFetch(ctx, s.client, s.timeout, url)
		entry.data, entry.err = data, err
		entry.expires = time.Now().Add(lifetime)
	}
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.data, nil
}

// NewNonce implements Store. It panics if the system random number
// generator fails; see GenerateNonce.
func (s *MemoryStore) NewNonce(ctx context.Context, email string) (string, error) {
	nonce := GenerateNonce()
	s.noncesMu.Lock()
	s.nonces[noncePair{nonce, email}] = struct{}{}
	s.noncesMu.Unlock()
	return nonce, nil
}

// ConsumeNonce implements Store.
func (s *MemoryStore) ConsumeNonce(ctx context.Context, nonce, email string) (bool, error) {
	s.noncesMu.Lock()
	defer s.noncesMu.Unlock()
	_, ok := s.nonces[noncePair{nonce, email}]
	delete(s.nonces, noncePair{nonce, email})
	return ok, nil
}

// StatusError reports an unexpected HTTP status code from a document fetch.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status code %d", e.StatusCode)
}

// SimpleFetch performs a single GET request using the given HTTP client, and
// handles the response.
//
// It checks the response status, parses the Cache-Control header, and reads
// the response body. The returned duration is how long the result may be
// cached: 3 seconds for a failed request, and otherwise at least 60 seconds,
// stretched to the server's Cache-Control max-age when that is longer. A
// response with a status other than 200 fails with a StatusError.
//
// This is a building block for Store.Fetch implementations to use on cache
// miss.
func SimpleFetch(ctx context.Context, client *http.Client, timeout time.Duration, url string) ([]byte, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errorCacheLifetime, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errorCacheLifetime, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorCacheLifetime, &StatusError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errorCacheLifetime, err
	}

	lifetime := minCacheLifetime
	if age, ok := parseMaxAge(resp.Header.Get("Cache-Control")); ok && age > lifetime {
		lifetime = age
	}
	return data, lifetime, nil
}

// parseMaxAge extracts the max-age directive from a Cache-Control header.
func parseMaxAge(header string) (time.Duration, bool) {
	for _, directive := range strings.Split(header, ",") {
		if value, ok := strings.CutPrefix(strings.TrimSpace(directive), "max-age="); ok {
			secs, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return 0, false
			}
			return time.Duration(secs) * time.Second, true
		}
	}
	return 0, false
}

// GenerateNonce returns 128 bits of secure random data in a URL-safe
// encoding.
//
// This is a default implementation for Store.NewNonce implementations to
// generate nonces (numbers used once) with. It panics if the system random
// number generator fails: continuing with a broken RNG would silently void
// the unpredictability that nonces exist to provide.
func GenerateNonce() string {
	var data [16]byte
	if _, err := rand.Read(data[:]); err != nil {
		panic(fmt.Sprintf("secure random number generator failed: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(data[:])
}
