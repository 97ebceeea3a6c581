package beacon

import "errors"

// Errors reported by New.
var (
	// ErrInvalidServer means the broker or identity provider URL does not
	// have a usable origin.
	ErrInvalidServer = errors.New("the configured server URL cannot be used")
	// ErrInvalidRedirectURI means the redirect URI does not have a usable
	// origin.
	ErrInvalidRedirectURI = errors.New("the configured redirect URI cannot be used")
	// ErrServerNotAnOrigin means the broker or identity provider URL
	// carries more than an origin, such as a path or query string.
	ErrServerNotAnOrigin = errors.New("the configured server is not an origin (contains additional components)")
)

// Errors reported by Client.StartAuth and Client.Verify. Fetch, parse, and
// store failures wrap their underlying cause; match with errors.Is.
var (
	ErrFetchDiscovery = errors.New("could not fetch discovery document")
	ErrParseDiscovery = errors.New("could not parse discovery document")
	ErrFetchKeys      = errors.New("could not fetch keys document")
	ErrParseKeys      = errors.New("could not parse keys document")
	ErrGenerateNonce  = errors.New("could not generate nonce")

	ErrInvalidPayload              = errors.New("invalid token payload")
	ErrIssuerInvalid               = errors.New("the token issuer did not match")
	ErrAudienceInvalid             = errors.New("the token audience did not match")
	ErrTokenExpired                = errors.New("the token has expired")
	ErrIssuedInTheFuture           = errors.New("the token issue time is in the future")
	ErrUntrustedServerChangedEmail = errors.New("the server changed the email address, but is not trusted")
	ErrVerifySession               = errors.New("could not verify the session")
	ErrInvalidSession              = errors.New("the session is invalid or has expired")
)
