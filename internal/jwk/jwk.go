// Package jwk models the key documents served by authentication servers:
// JSON Web Key sets per RFC 7517.
//
// Parsing is forward-compatible: keys with an unrecognized type, algorithm,
// or curve decode into explicit unknown variants instead of failing the
// document, so a server may advertise keys this package cannot use. The
// failure surfaces later, if such a key is selected during verification.
package jwk

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// KeySet is a document containing a set of keys (RFC 7517, Section 5).
// Key identifiers are not checked for uniqueness; an ambiguous "kid" is a
// verification-time failure, not a parse error.
type KeySet struct {
	Keys []Key `json:"keys"`
}

// Key is a single JWK (RFC 7517, Section 4). The concrete type of Data
// depends on the key's "kty" field.
type Key struct {
	Kid  string
	Data KeyData
}

// KeyData holds the type-specific fields of a key: RsaKey, OkpKey, or
// UnknownKey.
type KeyData interface {
	keyData()
}

// RsaKey holds the RSA-specific fields of a key (RFC 7518, Section 6.3).
// N and E are the raw big-endian modulus and exponent bytes.
type RsaKey struct {
	Alg RsaAlg
	N   []byte
	E   []byte
}

// OkpKey holds the Octet Key Pair specific fields of a key (RFC 8037,
// Section 2), used by Ed25519 and Ed448. X is the raw public key.
type OkpKey struct {
	Alg OkpAlg
	Crv Curve
	X   []byte
}

// UnknownKey stands in for any key type this package does not recognize.
// It round-trips structurally but carries no usable key data.
type UnknownKey struct{}

func (RsaKey) keyData()     {}
func (OkpKey) keyData()     {}
func (UnknownKey) keyData() {}

// RsaAlg is the signature algorithm of an RSA key.
type RsaAlg int

const (
	RsaAlgUnknown RsaAlg = iota
	RS256
)

// OkpAlg is the signature algorithm of an OKP key.
type OkpAlg int

const (
	OkpAlgUnknown OkpAlg = iota
	EdDSA
)

// Curve is the named curve of an OKP key.
type Curve int

const (
	CurveUnknown Curve = iota
	Ed25519
)

// UnmarshalJSON decodes a single key. The "kid" and "kty" fields are always
// required; the fields required beyond that depend on the key type.
// Malformed base64 in a binary field fails the key (and with it the whole
// document), reported with the field's name.
func (k *Key) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kid *string `json:"kid"`
		Kty *string `json:"kty"`
		Alg *string `json:"alg"`
		Crv *string `json:"crv"`
		N   *string `json:"n"`
		E   *string `json:"e"`
		X   *string `json:"x"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Kid == nil {
		return fmt.Errorf("missing field %q", "kid")
	}
	if raw.Kty == nil {
		return fmt.Errorf("missing field %q", "kty")
	}
	k.Kid = *raw.Kid

	switch *raw.Kty {
	case "RSA":
		key := RsaKey{}
		alg, err := requireString("alg", raw.Alg)
		if err != nil {
			return err
		}
		if alg == "RS256" {
			key.Alg = RS256
		}
		if key.N, err = decodeBinary("n", raw.N); err != nil {
			return err
		}
		if key.E, err = decodeBinary("e", raw.E); err != nil {
			return err
		}
		k.Data = key
	case "OKP":
		key := OkpKey{}
		alg, err := requireString("alg", raw.Alg)
		if err != nil {
			return err
		}
		if alg == "EdDSA" {
			key.Alg = EdDSA
		}
		crv, err := requireString("crv", raw.Crv)
		if err != nil {
			return err
		}
		if crv == "Ed25519" {
			key.Crv = Ed25519
		}
		if key.X, err = decodeBinary("x", raw.X); err != nil {
			return err
		}
		k.Data = key
	default:
		k.Data = UnknownKey{}
	}
	return nil
}

func requireString(field string, value *string) (string, error) {
	if value == nil {
		return "", fmt.Errorf("missing field %q", field)
	}
	return *value, nil
}

// decodeBinary decodes a required, unpadded URL-safe base64 field.
func decodeBinary(field string, value *string) ([]byte, error) {
	if value == nil {
		return nil, fmt.Errorf("missing field %q", field)
	}
	data, err := base64.RawURLEncoding.DecodeString(*value)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 in field %q: %w", field, err)
	}
	return data, nil
}
