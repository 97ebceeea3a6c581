// Package jws verifies the signature on compact serialized tokens
// (header.payload.signature) against a set of keys.
package jws

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/beaconauth/beacon-go/internal/jwk"
)

var (
	// ErrIncorrectFormat means the token is not three dot-separated parts.
	ErrIncorrectFormat = errors.New("the token must consist of three dot-separated parts")
	// ErrInvalidHeaderJSON means the token header is not a JSON document
	// with a "kid" field.
	ErrInvalidHeaderJSON = errors.New("the token header contained invalid JSON")
	// ErrKidNotMatched means the token "kid" matched either none or several
	// of the keys. An ambiguous match is treated the same as no match.
	ErrKidNotMatched = errors.New("the token 'kid' did not match exactly one key")
	// ErrUnsupportedKeyType means the matched key is of a kind this package
	// cannot verify with.
	ErrUnsupportedKeyType = errors.New("the matching key is of an unsupported type")
	// ErrBadSignature means the signature did not validate using the
	// matched key. It deliberately carries no further detail.
	ErrBadSignature = errors.New("the token signature did not validate using the matching key")
)

// A Base64Error reports that one of the token's parts was not valid
// unpadded URL-safe base64. Index is 1-based.
type Base64Error struct {
	Index int
	Err   error
}

func (e *Base64Error) Error() string {
	return fmt.Sprintf("token part %d contained invalid base64: %v", e.Index, e.Err)
}

func (e *Base64Error) Unwrap() error { return e.Err }

// Verify checks the signature on a compact token against the given keys,
// and returns the decoded payload if it validates. The payload is returned
// unparsed; interpreting it as a claims document is up to the caller.
//
// The key to verify with is selected by the "kid" field of the token
// header, which must match exactly one key. Supported keys are OKP keys
// with the EdDSA algorithm on the Ed25519 curve, and RSA keys with the
// RS256 algorithm and a modulus of 2048 to 8192 bits.
func Verify(token string, keys []jwk.Key) ([]byte, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrIncorrectFormat
	}

	// The signed message is the header and payload exactly as transmitted.
	// It must be sliced from the input before any decoding.
	message := []byte(token[:len(parts[0])+1+len(parts[1])])

	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, &Base64Error{Index: 1, Err: err}
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, &Base64Error{Index: 2, Err: err}
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, &Base64Error{Index: 3, Err: err}
	}

	var hdr struct {
		Kid *string `json:"kid"`
	}
	if err := json.Unmarshal(header, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeaderJSON, err)
	}
	if hdr.Kid == nil {
		return nil, fmt.Errorf("%w: missing field %q", ErrInvalidHeaderJSON, "kid")
	}

	var matched []jwk.Key
	for _, key := range keys {
		if key.Kid == *hdr.Kid {
			matched = append(matched, key)
		}
	}
	if len(matched) != 1 {
		return nil, fmt.Errorf("%w: %q", ErrKidNotMatched, *hdr.Kid)
	}

	switch data := matched[0].Data.(type) {
	case jwk.OkpKey:
		if data.Alg != jwk.EdDSA || data.Crv != jwk.Ed25519 {
			return nil, ErrUnsupportedKeyType
		}
		if !verifyEd25519(data.X, message, signature) {
			return nil, ErrBadSignature
		}
	case jwk.RsaKey:
		if data.Alg != jwk.RS256 {
			return nil, ErrUnsupportedKeyType
		}
		if !verifyRS256(data.N, data.E, message, signature) {
			return nil, ErrBadSignature
		}
	default:
		return nil, ErrUnsupportedKeyType
	}

	return payload, nil
}

func verifyEd25519(x, message, signature []byte) bool {
	if len(x) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(x), message, signature)
}

// verifyRS256 checks an RSASSA-PKCS1-v1_5 SHA-256 signature against raw
// modulus and exponent buffers. All failure modes, including unusable key
// material, report as a plain mismatch: distinguishing them would hand an
// attacker an oracle for which stage failed.
func verifyRS256(n, e, message, signature []byte) bool {
	modulus := new(big.Int).SetBytes(n)
	if bits := modulus.BitLen(); bits < 2048 || bits > 8192 {
		return false
	}
	exponent := new(big.Int).SetBytes(e)
	if !exponent.IsInt64() || exponent.Int64() < 3 || exponent.Int64() > math.MaxInt32 {
		return false
	}
	pub := &rsa.PublicKey{N: modulus, E: int(exponent.Int64())}
	digest := sha256.Sum256(message)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature) == nil
}
