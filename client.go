package beacon

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/beaconauth/beacon-go/internal/jwk"
	"github.com/beaconauth/beacon-go/internal/jws"
)

// DefaultBroker is the trusted broker used when none is configured.
const DefaultBroker = "https://broker.beaconauth.io"

// DefaultLeeway is the default tolerance allowed on token timestamps.
const DefaultLeeway = 3 * time.Minute

const discoveryPath = "/.well-known/openid-configuration"

// An Option configures a Client during New.
type Option func(*options)

type options struct {
	store        Store
	server       string
	trusted      bool
	responseMode ResponseMode
	leeway       time.Duration
}

// WithStore uses the given Store for cache and session storage.
//
// If no store is configured, a MemoryStore is created. That type of store
// has some limitations; see its documentation for details.
func WithStore(store Store) Option {
	return func(o *options) { o.store = store }
}

// WithBroker configures the client to use a trusted broker, overriding
// DefaultBroker. The URL must be an origin only: scheme, host, and
// optionally a port. No path, query string, etc.
func WithBroker(url string) Option {
	return func(o *options) {
		o.server = url
		o.trusted = true
	}
}

// WithIdP configures the client to use an untrusted identity provider.
//
// This is usually only used when implementing a broker. For pointing a
// relying party at a custom broker, see WithBroker instead.
func WithIdP(url string) Option {
	return func(o *options) {
		o.server = url
		o.trusted = false
	}
}

// WithResponseMode configures the response mode to use. The default is
// ResponseModeFormPost.
func WithResponseMode(mode ResponseMode) Option {
	return func(o *options) { o.responseMode = mode }
}

// WithLeeway configures the tolerance allowed on timestamps in tokens, to
// absorb clock skew between parties. The default is DefaultLeeway.
func WithLeeway(leeway time.Duration) Option {
	return func(o *options) { o.leeway = leeway }
}

// A Client performs the relying-party side of the authentication protocol.
//
// A Client is immutable after construction. Sharing one is done simply by
// reference, even across goroutines; all methods take a non-mutating
// receiver, and all mutable state lives in the Store. Copying a Client
// duplicates its configuration but shares the Store with the original, so
// the store lives as long as its longest-lived holder.
type Client struct {
	store        Store
	serverID     string
	discoveryURL string
	trusted      bool
	redirectURI  string
	clientID     string
	responseMode ResponseMode
	leeway       time.Duration

	now func() time.Time
}

// New validates the configuration and builds a Client.
//
// redirectURI is the route on this application that receives the
// authentication response, delivered according to the configured
// ResponseMode. It fails with ErrInvalidServer, ErrInvalidRedirectURI, or
// ErrServerNotAnOrigin; a Client is never partially built.
func New(redirectURI string, opts ...Option) (*Client, error) {
	o := options{
		server:       DefaultBroker,
		trusted:      true,
		responseMode: ResponseModeFormPost,
		leeway:       DefaultLeeway,
	}
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		store = NewMemoryStore()
	}

	server, err := url.Parse(o.server)
	if err != nil {
		return nil, ErrInvalidServer
	}
	serverID, ok := origin(server)
	if !ok {
		return nil, ErrInvalidServer
	}

	redirect, err := url.Parse(redirectURI)
	if err != nil {
		return nil, ErrInvalidRedirectURI
	}
	clientID, ok := origin(redirect)
	if !ok {
		return nil, ErrInvalidRedirectURI
	}

	// The server URL must carry nothing besides its origin, save for an
	// optional trailing slash.
	if server.User != nil || server.Opaque != "" ||
		(server.Path != "" && server.Path != "/") ||
		server.RawQuery != "" || server.ForceQuery || server.Fragment != "" {
		return nil, ErrServerNotAnOrigin
	}

	discovery := *server
	discovery.Path = discoveryPath

	return &Client{
		store:        store,
		serverID:     serverID,
		discoveryURL: discovery.String(),
		trusted:      o.trusted,
		redirectURI:  redirect.String(),
		clientID:     clientID,
		responseMode: o.responseMode,
		leeway:       o.leeway,
		now:          time.Now,
	}, nil
}

// StartAuth creates a login session for the given email address, and
// returns a URL to redirect the user agent (browser) to so authentication
// can continue.
//
// When performing the redirect in the HTTP response, the recommended method
// is a 303 status code with the Location header set to the URL. Other
// solutions are possible, such as fetching this URL from client-side
// JavaScript.
//
// The caller may add a "state" query parameter to the returned URL, which
// is passed verbatim to the redirect URI after the user returns.
func (c *Client) StartAuth(ctx context.Context, email string) (string, error) {
	discovery, err := c.fetchDiscovery(ctx)
	if err != nil {
		return "", err
	}

	nonce, err := c.store.NewNonce(ctx, email)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerateNonce, err)
	}

	authURL := *discovery.authorizationEndpoint
	query := authURL.Query()
	query.Set("login_hint", email)
	query.Set("scope", "openid email")
	query.Set("nonce", nonce)
	query.Set("response_type", "id_token")
	query.Set("response_mode", string(c.responseMode))
	query.Set("client_id", c.clientID)
	query.Set("redirect_uri", c.redirectURI)
	authURL.RawQuery = query.Encode()
	return authURL.String(), nil
}

// Verify checks the given token and returns the verified email address.
//
// The token is delivered by the user agent (browser) directly, according to
// the redirect URI and ResponseMode the Client was created with.
func (c *Client) Verify(ctx context.Context, token string) (string, error) {
	discovery, err := c.fetchDiscovery(ctx)
	if err != nil {
		return "", err
	}

	keysData, err := c.store.Fetch(ctx, discovery.jwksURI.String())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetchKeys, err)
	}
	var keySet jwk.KeySet
	if err := json.Unmarshal(keysData, &keySet); err != nil {
		return "", fmt.Errorf("%w: %w", ErrParseKeys, err)
	}

	payload, err := jws.Verify(token, keySet.Keys)
	if err != nil {
		return "", fmt.Errorf("could not verify token signature: %w", err)
	}

	claims, err := parseClaims(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if claims.issuer != c.serverID {
		return "", ErrIssuerInvalid
	}
	if claims.audience != c.clientID {
		return "", ErrAudienceInvalid
	}

	now := unixNow(c.now())
	leeway := uint64(c.leeway / time.Second)

	// The timestamp checks saturate instead of wrapping, so a token with an
	// absurd timestamp fails closed.
	expStretched := claims.expires + leeway
	if expStretched < claims.expires {
		expStretched = 0
	}
	if expStretched < now {
		return "", ErrTokenExpired
	}

	iatStretched := uint64(math.MaxUint64)
	if claims.issuedAt >= leeway {
		iatStretched = claims.issuedAt - leeway
	}
	if now < iatStretched {
		return "", ErrIssuedInTheFuture
	}

	// An identity provider cannot change the email address: the protocol
	// assumes the client is a broker in that case and has already done
	// normalization itself. Only a trusted broker may normalize.
	if !c.trusted && claims.emailOriginal != nil && *claims.emailOriginal != claims.email {
		return "", ErrUntrustedServerChangedEmail
	}

	// The session was created for the address as the user entered it.
	sessionEmail := claims.email
	if claims.emailOriginal != nil {
		sessionEmail = *claims.emailOriginal
	}
	found, err := c.store.ConsumeNonce(ctx, claims.nonce, sessionEmail)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrVerifySession, err)
	}
	if !found {
		return "", ErrInvalidSession
	}

	return claims.email, nil
}

func (c *Client) fetchDiscovery(ctx context.Context) (*discoveryDoc, error) {
	data, err := c.store.Fetch(ctx, c.discoveryURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchDiscovery, err)
	}
	doc, err := parseDiscovery(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseDiscovery, err)
	}
	return doc, nil
}

func unixNow(t time.Time) uint64 {
	secs := t.Unix()
	if secs < 0 {
		return 0
	}
	return uint64(secs)
}
