package beacon

import (
	"net/url"
	"strings"
)

// origin returns the serialized tuple origin of u: scheme://host with the
// scheme and host lowercased, plus the port when it is not the scheme
// default. The second return value is false when u has no tuple origin;
// only http and https URLs have one here, everything else is opaque.
func origin(u *url.URL) (string, bool) {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	if strings.Contains(host, ":") {
		// IPv6 literal; Hostname strips the brackets.
		host = "[" + host + "]"
	}
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		return scheme + "://" + host + ":" + port, true
	}
	return scheme + "://" + host, true
}
