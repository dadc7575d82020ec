// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"crypto/md5" //nolint:gosec // G501: legacy digest scheme, kept for stored-credential compatibility
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // G505: see above
	"encoding/hex"
	"math/big"

	"github.com/samber/oops"
)

// PasswordCodec derives password digests and salts.
//
// Encrypt must be deterministic: verification recomputes the digest from the
// submitted password and the stored salt and compares the results.
type PasswordCodec interface {
	// Encrypt derives the digest stored in UserAuth.PasswordHash.
	Encrypt(password, salt string) string

	// GenerateSalt produces a random salt of exactly length characters.
	// With letters set, characters are drawn from a hex alphabet;
	// otherwise the salt is decimal digits only. Salts are generated at
	// account creation or password reset, never per login.
	GenerateSalt(length int, letters bool) (string, error)
}

// DigestCodec implements PasswordCodec as sha1(md5(password) + salt), both
// hex-encoded. The scheme matches credentials already at rest, so it cannot
// change without a migration that rehashes every record.
type DigestCodec struct{}

// NewDigestCodec creates a new DigestCodec.
func NewDigestCodec() *DigestCodec {
	return &DigestCodec{}
}

// Encrypt derives the stored digest for a password and salt.
func (c *DigestCodec) Encrypt(password, salt string) string {
	inner := md5.Sum([]byte(password)) //nolint:gosec // G401: legacy scheme
	outer := sha1.Sum([]byte(hex.EncodeToString(inner[:]) + salt))
	return hex.EncodeToString(outer[:])
}

// GenerateSalt produces a random salt of exactly length characters.
func (c *DigestCodec) GenerateSalt(length int, letters bool) (string, error) {
	if length < 0 {
		return "", oops.Code("AUTH_SALT_LENGTH").
			With("length", length).
			Errorf("salt length cannot be negative")
	}

	if letters {
		// Half the requested length in random bytes hex-encodes to at
		// least length characters.
		raw := make([]byte, (length+1)/2)
		if _, err := rand.Read(raw); err != nil {
			return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
		}
		return hex.EncodeToString(raw)[:length], nil
	}

	salt := make([]byte, length)
	for i := range salt {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
		}
		salt[i] = byte('0' + n.Int64())
	}
	return string(salt), nil
}
