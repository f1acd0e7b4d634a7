// Package signing implements the CDN URL signing scheme used to gate read
// access to otherwise-private image objects. Two modes are supported:
//
//   - single-URL signing: the signature covers one concrete URL;
//   - URL-prefix tokens: one signed policy authorizes every URL that shares
//     a prefix, so a feed with many images needs a single signing operation.
//
// Signatures are HMAC-SHA1 over the policy string, base64url-encoded without
// padding, matching what the CDN edge recomputes.
package signing

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrBadKey means the configured key material is absent or malformed.
	// Construction must fail loudly: serving an unsigned URL for a private
	// resource is a security incident, not a fallback.
	ErrBadKey = errors.New("signing: bad key material")

	// ErrBadSignature means a signature did not verify.
	ErrBadSignature = errors.New("signing: signature mismatch")

	// ErrExpired means the policy's Expires timestamp has passed.
	ErrExpired = errors.New("signing: token expired")

	// ErrPrefixMismatch means the URL does not share the token's prefix.
	ErrPrefixMismatch = errors.New("signing: url does not match prefix")
)

// timeNow is a seam for tests.
var timeNow = time.Now

// Signer signs CDN URLs and URL prefixes with a named shared-secret key.
type Signer struct {
	keyName string
	key     []byte
}

// New builds a Signer from a key name and a base64-encoded secret.
// The secret is accepted in either URL-safe or standard base64, with or
// without padding, because provisioning tools differ on which they emit.
// Keys that decode to fewer than 16 bytes are rejected.
func New(keyName, keyB64 string) (*Signer, error) {
	if keyName == "" {
		return nil, fmt.Errorf("%w: empty key name", ErrBadKey)
	}
	key, err := decodeKey(keyB64)
	if err != nil {
		return nil, err
	}
	if len(key) < 16 {
		return nil, fmt.Errorf("%w: key decodes to %d bytes, need at least 16", ErrBadKey, len(key))
	}
	return &Signer{keyName: keyName, key: key}, nil
}

// decodeKey tries URL-safe base64 first, then standard, fixing up padding.
func decodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty key", ErrBadKey)
	}
	padded := s + strings.Repeat("=", (4-len(s)%4)%4)
	if b, err := base64.URLEncoding.DecodeString(padded); err == nil {
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(padded)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid base64", ErrBadKey)
	}
	return b, nil
}

// SignURL signs one concrete URL. The returned URL carries Expires, KeyName
// and Signature query parameters; the signature covers everything before
// "&Signature=".
func (s *Signer) SignURL(rawURL string, ttl time.Duration) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("signing: url must start with http(s)://: %q", rawURL)
	}

	exp := timeNow().Add(ttl).Unix()
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	toSign := fmt.Sprintf("%s%sExpires=%d&KeyName=%s", rawURL, sep, exp, s.keyName)
	return toSign + "&Signature=" + s.sign(toSign), nil
}

// SignPrefix returns an opaque token authorizing every URL that starts with
// prefix. Appending the token as a query string to any such URL makes it
// verifiable by the edge.
func (s *Signer) SignPrefix(prefix string, ttl time.Duration) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("signing: empty url prefix")
	}
	exp := timeNow().Add(ttl).Unix()
	policy := fmt.Sprintf("URLPrefix=%s&Expires=%d&KeyName=%s",
		base64.RawURLEncoding.EncodeToString([]byte(prefix)), exp, s.keyName)
	return policy + "&Signature=" + s.sign(policy), nil
}

// VerifySignedURL recomputes the signature of a URL produced by SignURL,
// the same check the CDN edge performs.
func (s *Signer) VerifySignedURL(signedURL string) error {
	toSign, sig, ok := strings.Cut(signedURL, "&Signature=")
	if !ok {
		return ErrBadSignature
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(toSign))) {
		return ErrBadSignature
	}
	return checkExpiry(toSign)
}

// VerifyPrefixToken checks that token was produced by SignPrefix with this
// signer's key, is not expired, and that rawURL shares the signed prefix.
func (s *Signer) VerifyPrefixToken(rawURL, token string) error {
	policy, sig, ok := strings.Cut(token, "&Signature=")
	if !ok {
		return ErrBadSignature
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(policy))) {
		return ErrBadSignature
	}

	vals, err := url.ParseQuery(policy)
	if err != nil {
		return ErrBadSignature
	}
	prefixBytes, err := base64.RawURLEncoding.DecodeString(vals.Get("URLPrefix"))
	if err != nil {
		return ErrBadSignature
	}
	if !strings.HasPrefix(rawURL, string(prefixBytes)) {
		return ErrPrefixMismatch
	}
	return checkExpiry(policy)
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha1.New, s.key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func checkExpiry(policy string) error {
	idx := strings.Index(policy, "Expires=")
	if idx < 0 {
		return ErrBadSignature
	}
	rest := policy[idx+len("Expires="):]
	if amp := strings.IndexByte(rest, '&'); amp >= 0 {
		rest = rest[:amp]
	}
	exp, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if timeNow().Unix() > exp {
		return ErrExpired
	}
	return nil
}
