package auth

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Algorithm identifies one of the JWT signing families spec §4.7 requires
// the gateway to support.
type Algorithm string

const (
	AlgHS256 Algorithm = "HS256"
	AlgHS384 Algorithm = "HS384"
	AlgHS512 Algorithm = "HS512"
	AlgRS256 Algorithm = "RS256"
	AlgRS384 Algorithm = "RS384"
	AlgRS512 Algorithm = "RS512"
	AlgES256 Algorithm = "ES256"
	AlgES384 Algorithm = "ES384"
	AlgES512 Algorithm = "ES512"
)

func (a Algorithm) signingMethod() jwt.SigningMethod {
	switch a {
	case AlgHS256:
		return jwt.SigningMethodHS256
	case AlgHS384:
		return jwt.SigningMethodHS384
	case AlgHS512:
		return jwt.SigningMethodHS512
	case AlgRS256:
		return jwt.SigningMethodRS256
	case AlgRS384:
		return jwt.SigningMethodRS384
	case AlgRS512:
		return jwt.SigningMethodRS512
	case AlgES256:
		return jwt.SigningMethodES256
	case AlgES384:
		return jwt.SigningMethodES384
	case AlgES512:
		return jwt.SigningMethodES512
	default:
		return nil
	}
}

func (a Algorithm) isHMAC() bool {
	switch a {
	case AlgHS256, AlgHS384, AlgHS512:
		return true
	}
	return false
}

func (a Algorithm) isRSA() bool {
	switch a {
	case AlgRS256, AlgRS384, AlgRS512:
		return true
	}
	return false
}

func (a Algorithm) isECDSA() bool {
	switch a {
	case AlgES256, AlgES384, AlgES512:
		return true
	}
	return false
}

// Claims holds the gateway's required JWT claims (spec §4.7): standard
// registered claims plus team_ctx, scopes, and is_platform_admin.
type Claims struct {
	jwt.RegisteredClaims
	TeamCtx         string   `json:"team_ctx,omitempty"`
	Scopes          []string `json:"scopes,omitempty"`
	IsPlatformAdmin bool     `json:"is_platform_admin"`
}

// Issuer signs and validates JWTs for one configured algorithm/key pair. A
// deployment typically owns exactly one Issuer, configured at startup.
type Issuer struct {
	Algorithm Algorithm
	Audience  string
	IssuerID  string
	TTL       time.Duration

	hmacKey    []byte
	rsaPrivate *rsa.PrivateKey
	rsaPublic  *rsa.PublicKey
	ecPrivate  *ecdsa.PrivateKey
	ecPublic   *ecdsa.PublicKey
}

// NewHMACIssuer builds an Issuer for an HS256/384/512 algorithm.
func NewHMACIssuer(alg Algorithm, secret []byte, audience, issuerID string, ttl time.Duration) (*Issuer, error) {
	if !alg.isHMAC() {
		return nil, fmt.Errorf("algorithm %s is not an HMAC family", alg)
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("HMAC secret must not be empty")
	}
	return &Issuer{Algorithm: alg, Audience: audience, IssuerID: issuerID, TTL: ttl, hmacKey: secret}, nil
}

// NewRSAIssuer builds an Issuer for an RS256/384/512 algorithm. priv may be
// nil for an issuer that only verifies tokens signed elsewhere (pub alone).
func NewRSAIssuer(alg Algorithm, priv *rsa.PrivateKey, pub *rsa.PublicKey, audience, issuerID string, ttl time.Duration) (*Issuer, error) {
	if !alg.isRSA() {
		return nil, fmt.Errorf("algorithm %s is not an RSA family", alg)
	}
	return &Issuer{Algorithm: alg, Audience: audience, IssuerID: issuerID, TTL: ttl, rsaPrivate: priv, rsaPublic: pub}, nil
}

// NewECDSAIssuer builds an Issuer for an ES256/384/512 algorithm.
func NewECDSAIssuer(alg Algorithm, priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey, audience, issuerID string, ttl time.Duration) (*Issuer, error) {
	if !alg.isECDSA() {
		return nil, fmt.Errorf("algorithm %s is not an ECDSA family", alg)
	}
	return &Issuer{Algorithm: alg, Audience: audience, IssuerID: issuerID, TTL: ttl, ecPrivate: priv, ecPublic: pub}, nil
}

// IssueOptions carries the per-token claim values Issue needs beyond what's
// fixed at the Issuer level.
type IssueOptions struct {
	Subject         string // user email
	TeamCtx         string
	Scopes          []string
	IsPlatformAdmin bool
	JTI             string // defaults to a new UUID if empty
	TTL             time.Duration // overrides Issuer.TTL when non-zero (for long-lived API tokens)
}

// Issue signs a new JWT for opts.
func (iss *Issuer) Issue(opts IssueOptions) (token string, jti string, err error) {
	jti = opts.JTI
	if jti == "" {
		jti = uuid.NewString()
	}
	ttl := iss.TTL
	if opts.TTL > 0 {
		ttl = opts.TTL
	}
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   opts.Subject,
			Issuer:    iss.IssuerID,
			Audience:  jwt.ClaimStrings{iss.Audience},
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TeamCtx:         opts.TeamCtx,
		Scopes:          opts.Scopes,
		IsPlatformAdmin: opts.IsPlatformAdmin,
	}

	tok := jwt.NewWithClaims(iss.Algorithm.signingMethod(), claims)
	signed, err := tok.SignedString(iss.signingKey())
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}
	return signed, jti, nil
}

func (iss *Issuer) signingKey() any {
	switch {
	case iss.Algorithm.isHMAC():
		return iss.hmacKey
	case iss.Algorithm.isRSA():
		return iss.rsaPrivate
	case iss.Algorithm.isECDSA():
		return iss.ecPrivate
	}
	return nil
}

func (iss *Issuer) verifyKey() any {
	switch {
	case iss.Algorithm.isHMAC():
		return iss.hmacKey
	case iss.Algorithm.isRSA():
		return iss.rsaPublic
	case iss.Algorithm.isECDSA():
		return iss.ecPublic
	}
	return nil
}

// RevocationChecker reports whether a token's jti has been revoked (via
// ApiToken.revoked_at or an explicit revocation list). Validate consults it
// for every parsed token, satisfying spec §8 P8 (revoked JWTs rejected).
type RevocationChecker interface {
	IsRevoked(jti string) bool
}

// Validate parses and validates a JWT, enforcing signing method, audience,
// issuer, expiry, and revocation.
func (iss *Issuer) Validate(tokenStr string, revocation RevocationChecker) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != string(iss.Algorithm) {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return iss.verifyKey(), nil
	}, jwt.WithAudience(iss.Audience), jwt.WithIssuer(iss.IssuerID), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if revocation != nil && claims.ID != "" && revocation.IsRevoked(claims.ID) {
		return nil, fmt.Errorf("token %s has been revoked", claims.ID)
	}

	return claims, nil
}

// Identity builds an Identity from validated Claims. teamIDs is the
// caller's resolved set of team memberships for the subject (the token
// itself only names the active TeamCtx, not the full membership list).
func (c *Claims) Identity(teamIDs []string) Identity {
	return Identity{
		UserEmail: c.Subject,
		Admin:     c.IsPlatformAdmin,
		Teams:     teamIDs,
		Scopes:    c.Scopes,
		TenantID:  c.TeamCtx,
		TokenJTI:  c.ID,
	}
}
