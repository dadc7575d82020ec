// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

func TestDigestCodec_Encrypt(t *testing.T) {
	codec := auth.NewDigestCodec()

	tests := []struct {
		name     string
		password string
		salt     string
		want     string
	}{
		{
			name:     "known vector",
			password: "password",
			salt:     "salt",
			want:     "924ed084a9d826cab7b932431d5595d3198df85c",
		},
		{
			name:     "numeric salt",
			password: "secret",
			salt:     "123456",
			want:     "7bcb7897c5a075af506ccfa16d35b0df31a75d9b",
		},
		{
			name:     "empty password and salt",
			password: "",
			salt:     "",
			want:     "67a74306b06d0c01624fe0d0249a570f4d093747",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codec.Encrypt(tt.password, tt.salt))
		})
	}
}

func TestDigestCodec_EncryptDeterministic(t *testing.T) {
	codec := auth.NewDigestCodec()

	first := codec.Encrypt("hunter2", "a1b2c3")
	second := codec.Encrypt("hunter2", "a1b2c3")
	assert.Equal(t, first, second)

	// Salt changes the digest even for the same password.
	assert.NotEqual(t, first, codec.Encrypt("hunter2", "d4e5f6"))
	// And vice versa.
	assert.NotEqual(t, first, codec.Encrypt("hunter3", "a1b2c3"))
}

func TestDigestCodec_GenerateSalt(t *testing.T) {
	codec := auth.NewDigestCodec()

	t.Run("digits only", func(t *testing.T) {
		salt, err := codec.GenerateSalt(6, false)
		require.NoError(t, err)
		require.Len(t, salt, 6)
		for _, c := range salt {
			assert.True(t, c >= '0' && c <= '9', "unexpected character %q", c)
		}
	})

	t.Run("hex letters", func(t *testing.T) {
		salt, err := codec.GenerateSalt(7, true)
		require.NoError(t, err)
		require.Len(t, salt, 7)
		for _, c := range salt {
			isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
			assert.True(t, isHex, "unexpected character %q", c)
		}
	})

	t.Run("zero length", func(t *testing.T) {
		salt, err := codec.GenerateSalt(0, false)
		require.NoError(t, err)
		assert.Empty(t, salt)
	})

	t.Run("negative length", func(t *testing.T) {
		_, err := codec.GenerateSalt(-1, true)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_SALT_LENGTH")
	})
}
