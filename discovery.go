package beacon

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// discoveryDoc is an OpenID Connect discovery document, reduced to the two
// endpoints the protocol needs. It is parsed fresh on every operation;
// caching happens below it, in the Store.
type discoveryDoc struct {
	authorizationEndpoint *url.URL
	jwksURI               *url.URL
}

func parseDiscovery(data []byte) (*discoveryDoc, error) {
	var raw struct {
		AuthorizationEndpoint *string `json:"authorization_endpoint"`
		JwksURI               *string `json:"jwks_uri"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	authz, err := parseEndpoint("authorization_endpoint", raw.AuthorizationEndpoint)
	if err != nil {
		return nil, err
	}
	jwks, err := parseEndpoint("jwks_uri", raw.JwksURI)
	if err != nil {
		return nil, err
	}
	return &discoveryDoc{authorizationEndpoint: authz, jwksURI: jwks}, nil
}

func parseEndpoint(field string, value *string) (*url.URL, error) {
	if value == nil {
		return nil, fmt.Errorf("missing field %q", field)
	}
	u, err := url.Parse(*value)
	if err != nil {
		return nil, fmt.Errorf("invalid URL in field %q: %w", field, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("invalid URL in field %q: not an absolute URL", field)
	}
	return u, nil
}
