// Package token implements the symmetric access-token codec used to mask
// upstream CDN URLs behind opaque strings.
//
// The scheme is a byte-wise XOR against the key (cycled to the plaintext
// length) followed by URL-safe base64, with an optional "<unix>|" expiry
// prefix applied before the XOR step. It is deliberately deterministic and
// IV-free: other services sharing the same key must be able to decode the
// exact same token bytes. This is a tamper/expiry gate, not confidentiality —
// XOR key reuse across tokens is a known property of the scheme and must not
// be "fixed" without breaking cross-service compatibility.
package token

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	// ErrBadEncoding indicates the token is not valid URL-safe base64.
	ErrBadEncoding = errors.New("token: invalid encoding")
	// ErrBadText indicates the decoded bytes are not valid UTF-8 text.
	ErrBadText = errors.New("token: decoded payload is not valid text")
	// ErrExpired indicates the embedded expiry timestamp has passed.
	ErrExpired = errors.New("token: expired")
)

// Codec encodes and decodes access tokens under a fixed key.
// It is stateless and safe for concurrent use.
type Codec struct {
	key []byte
	now func() time.Time
}

// NewCodec creates a Codec. The key must be non-empty; an empty key is a
// configuration error and is rejected here so it fails at startup, not on
// the first request.
func NewCodec(key string) (*Codec, error) {
	if key == "" {
		return nil, errors.New("token: key must not be empty")
	}
	return &Codec{key: []byte(key), now: time.Now}, nil
}

// Encode transforms plaintext into an opaque token. If expiry is positive,
// an absolute unix-seconds deadline is prepended as "<unix>|" before the
// XOR step, so the deadline is covered by the same tamper protection as
// the payload.
func (c *Codec) Encode(plaintext string, expiry time.Duration) string {
	if expiry > 0 {
		deadline := c.now().Add(expiry).Unix()
		plaintext = strconv.FormatInt(deadline, 10) + "|" + plaintext
	}
	buf := []byte(plaintext)
	c.xor(buf)
	return base64.URLEncoding.EncodeToString(buf)
}

// Decode reverses Encode. Expired tokens fail with ErrExpired; tokens that
// are not base64 fail with ErrBadEncoding. The two are distinct error kinds
// because callers log them differently even when the client-facing rejection
// is the same.
func (c *Codec) Decode(tok string) (string, error) {
	buf, err := base64.URLEncoding.DecodeString(tok)
	if err != nil {
		// Tokens produced by peers may omit padding.
		buf, err = base64.RawURLEncoding.DecodeString(tok)
		if err != nil {
			return "", ErrBadEncoding
		}
	}
	c.xor(buf)
	if !utf8.Valid(buf) {
		return "", ErrBadText
	}
	text := string(buf)

	// A "<unix>|" prefix marks an embedded expiry. If the prefix does not
	// parse as a timestamp, the pipe belongs to the payload itself.
	if idx := strings.IndexByte(text, '|'); idx >= 0 {
		deadline, err := strconv.ParseInt(text[:idx], 10, 64)
		if err == nil {
			if c.now().Unix() > deadline {
				return "", ErrExpired
			}
			return text[idx+1:], nil
		}
	}
	return text, nil
}

// xor applies the cycled key in place.
func (c *Codec) xor(buf []byte) {
	for i := range buf {
		buf[i] ^= c.key[i%len(c.key)]
	}
}
