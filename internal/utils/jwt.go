// Package utils provides helpers for token creation and password
// verification.
package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken represents a signed JWT access token along with its
// expiry.  The Token field contains the JWT string; Exp stores the
// expiration timestamp.  Access tokens are short-lived and sent in the
// Authorization header when calling protected endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for an operator.  Besides
// the standard sub/exp/iat claims it carries the operator's role and the
// sales channel the terminal is bound to, so booking handlers receive
// channel and actor explicitly instead of reading ambient session state.
func NewAccessToken(secret string, operatorID uint64, role, channel string, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":     operatorID,
		"role":    role,
		"channel": channel,
		"exp":     exp.Unix(),
		"iat":     now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
