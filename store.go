package beacon

import "context"

// Store describes the backing storage a Client needs for two purposes:
//
//   - fetching JSON documents using HTTP GET, with caching, and
//   - generating and tracking nonces (numbers used once) for login sessions.
//
// A Store is shared by reference and must be safe for concurrent use; it is
// responsible for its own internal synchronization. The only cross-cutting
// requirements are that ConsumeNonce is atomic per (nonce, email) pair and
// that Fetch never has two requests for the same URL in flight at once.
type Store interface {
	// Fetch requests a document using HTTP GET, and performs caching.
	//
	// Implementations should honor HTTP cache headers, with a sensible
	// minimum (and possibly maximum) applied to the cache lifespan. See
	// SimpleFetch for a fallback implementation that can be used on cache
	// miss.
	Fetch(ctx context.Context, url string) ([]byte, error)

	// NewNonce generates a random nonce and stores the (nonce, email) pair.
	//
	// See GenerateNonce for a default way to generate the nonce, but using
	// it is not required. A custom implementation should return a string in
	// some URL-safe format to prevent unnecessary escaping.
	//
	// Implementations should not apply any limit to the amount of active
	// nonces; this is left to the application using the Client.
	NewNonce(ctx context.Context, email string) (string, error)

	// ConsumeNonce checks that a (nonce, email) pair exists, and deletes it
	// if so. It reports whether the pair was found, and returns an error
	// only to indicate problems with the store itself.
	ConsumeNonce(ctx context.Context, nonce, email string) (bool, error)
}
