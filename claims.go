package beacon

import (
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// claims is a token payload, decoded after signature verification. All
// fields except emailOriginal are required.
type claims struct {
	issuer   string
	audience string
	email    string
	// emailOriginal is the address as the user entered it, before the
	// server normalized it. Nil when the server did not normalize.
	emailOriginal *string
	issuedAt      uint64
	expires       uint64
	nonce         string
}

func parseClaims(payload []byte) (*claims, error) {
	// Timestamps use jwt.NumericDate because issuers disagree on the
	// encoding: some emit integer seconds, others floats.
	var raw struct {
		Iss           *string          `json:"iss"`
		Aud           *string          `json:"aud"`
		Email         *string          `json:"email"`
		EmailOriginal *string          `json:"email_original"`
		Iat           *jwt.NumericDate `json:"iat"`
		Exp           *jwt.NumericDate `json:"exp"`
		Nonce         *string          `json:"nonce"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	for field, ok := range map[string]bool{
		"iss":   raw.Iss != nil,
		"aud":   raw.Aud != nil,
		"email": raw.Email != nil,
		"iat":   raw.Iat != nil,
		"exp":   raw.Exp != nil,
		"nonce": raw.Nonce != nil,
	} {
		if !ok {
			return nil, fmt.Errorf("missing field %q", field)
		}
	}
	return &claims{
		issuer:        *raw.Iss,
		audience:      *raw.Aud,
		email:         *raw.Email,
		emailOriginal: raw.EmailOriginal,
		issuedAt:      unixSeconds(raw.Iat),
		expires:       unixSeconds(raw.Exp),
		nonce:         *raw.Nonce,
	}, nil
}

// unixSeconds converts a timestamp claim to whole seconds since the epoch,
// truncating fractions and clamping times before the epoch to zero.
func unixSeconds(date *jwt.NumericDate) uint64 {
	secs := date.Unix()
	if secs < 0 {
		return 0
	}
	return uint64(secs)
}
