package storage

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gocloud.dev/blob/driver"
	"gocloud.dev/blob/fileblob"
)

// DownloadPath is the route serving signed objects. The key travels in the
// obj query parameter.
const DownloadPath = "/files"

var (
	ErrBadSignature = errors.New("storage: bad signature")
	ErrExpired      = errors.New("storage: link expired")
)

// Signer issues and checks expiring download links.
type Signer struct {
	hmac *fileblob.URLSignerHMAC
	ttl  time.Duration
}

// NewSigner creates a signer. ttl is the lifetime of issued links.
func NewSigner(key string, ttl time.Duration) *Signer {
	return &Signer{
		hmac: fileblob.NewURLSignerHMAC(&url.URL{Path: DownloadPath}, []byte(key)),
		ttl:  ttl,
	}
}

// URL returns a relative download URL for key.
func (s *Signer) URL(ctx context.Context, key string) (string, error) {
	u, err := s.hmac.URLFromKey(ctx, key, &driver.SignedURLOptions{Expiry: s.ttl, Method: http.MethodGet})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Verify checks a download URL and returns the key it was issued for.
func (s *Signer) Verify(ctx context.Context, u *url.URL) (string, error) {
	key, err := s.hmac.KeyFromURL(ctx, u)
	if err == nil && key != "" {
		return key, nil
	}
	if exp, perr := strconv.ParseInt(u.Query().Get("expiry"), 10, 64); perr == nil && time.Now().Unix() > exp {
		return "", ErrExpired
	}
	return "", ErrBadSignature
}
