package wallet

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Connection is the persisted wallet-connection document. JWK is present
// only for keyfile connections; extension-based providers never expose
// key material to the client.
type Connection struct {
	Address            string `json:"address"`
	Connected          bool   `json:"connected"`
	ConnectionStrategy string `json:"connectionStrategy"`
	Provider           string `json:"provider"`
	JWK                *JWK   `json:"jwk,omitempty"`
}

// JWK holds an RSA private key in JSON Web Key form, the format wallet
// keyfiles use. All fields are base64url without padding.
type JWK struct {
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
	D   string `json:"d,omitempty"`
	P   string `json:"p,omitempty"`
	Q   string `json:"q,omitempty"`
	Dp  string `json:"dp,omitempty"`
	Dq  string `json:"dq,omitempty"`
	Qi  string `json:"qi,omitempty"`
}

func decodeBig(s string) (*big.Int, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// PrivateKey reconstructs the RSA private key from the JWK material.
func (j *JWK) PrivateKey() (*rsa.PrivateKey, error) {
	if j.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type %q", j.Kty)
	}
	if j.D == "" {
		return nil, fmt.Errorf("jwk carries no private exponent")
	}
	n, err := decodeBig(j.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	e, err := decodeBig(j.E)
	if err != nil {
		return nil, fmt.Errorf("invalid public exponent: %w", err)
	}
	d, err := decodeBig(j.D)
	if err != nil {
		return nil, fmt.Errorf("invalid private exponent: %w", err)
	}
	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: n, E: int(e.Int64())},
		D:         d,
	}
	if j.P != "" && j.Q != "" {
		p, err := decodeBig(j.P)
		if err != nil {
			return nil, fmt.Errorf("invalid prime p: %w", err)
		}
		q, err := decodeBig(j.Q)
		if err != nil {
			return nil, fmt.Errorf("invalid prime q: %w", err)
		}
		key.Primes = []*big.Int{p, q}
		key.Precompute()
	}
	return key, nil
}

// Signer mints session tokens for the gateway from a connection's signing
// capability. A nil Signer (no JWK) means the identity cannot sign and
// Bearer auth is skipped.
type Signer struct {
	address string
	key     *rsa.PrivateKey
	ttl     time.Duration
}

// NewSigner builds a Signer from a connected wallet, or returns nil if
// the connection carries no key material.
func NewSigner(conn *Connection, ttl time.Duration) (*Signer, error) {
	if conn == nil || conn.JWK == nil {
		return nil, nil
	}
	key, err := conn.JWK.PrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet key: %w", err)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Signer{address: conn.Address, key: key, ttl: ttl}, nil
}

// Address returns the wallet address the signer acts for.
func (s *Signer) Address() string {
	return s.address
}

// SessionToken mints a short-lived RS256 JWT presented to the gateway on
// connect.
func (s *Signer) SessionToken() (string, error) {
	now := time.Now()
	token := gojwt.NewWithClaims(gojwt.SigningMethodRS256, gojwt.MapClaims{
		"sub": s.address,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}
