// Package beacon implements the relying-party side of the Beacon protocol:
// passwordless, federated authentication of email addresses, built on OpenID
// Connect discovery and compact signed tokens.
//
// The primary interface of this package is the Client. Construct one with
// New, point it at a broker (or, when implementing a broker yourself, at an
// untrusted identity provider via WithIdP), and use two operations:
//
//   - StartAuth creates a login session for an email address and returns a
//     URL to redirect the user agent to.
//   - Verify checks the signed token that the server eventually delivers to
//     the redirect URI and returns the confirmed email address.
//
// A minimal relying party looks like:
//
//	client, err := beacon.New("https://app.example/verify")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// In the login form handler:
//	url, err := client.StartAuth(r.Context(), email)
//	// ... respond with a 303 redirect to url.
//
//	// In the /verify handler:
//	email, err := client.Verify(r.Context(), r.PostFormValue("id_token"))
//
// See examples/webapp for a complete application.
//
// # Storage
//
// Some data storage is needed to implement the protocol. It is used for
// tracking short-lived login sessions and for caching HTTP GET requests.
// The Store interface facilitates this, and by default an in-memory
// MemoryStore is used. That works fine for simple single-process
// applications, but if you intend to run multiple workers, an alternative
// Store must be implemented.
//
// Some applications may need multiple configurations and Client instances,
// for example because they serve multiple domains. In that case, create
// short-lived Clients and share one Store between them.
//
// # Errors
//
// All failure modes are exposed as sentinel errors (ErrTokenExpired,
// ErrInvalidSession, ...) or, for signature checks, the sentinels of the
// internal verification engine surfaced through errors.Is. The package
// itself never logs; mapping errors to responses and log lines is left to
// the embedding application.
package beacon
