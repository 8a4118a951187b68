package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeChecksum(t *testing.T) {
	checksums := NewChecksumService()

	t.Run("is deterministic", func(t *testing.T) {
		a := checksums.ComputeChecksumBytes([]byte("theme package"))
		b := checksums.ComputeChecksumBytes([]byte("theme package"))
		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
	})

	t.Run("differs per input", func(t *testing.T) {
		a := checksums.ComputeChecksumBytes([]byte("package a"))
		b := checksums.ComputeChecksumBytes([]byte("package b"))
		assert.NotEqual(t, a, b)
	})

	t.Run("reader and bytes agree", func(t *testing.T) {
		data := []byte("theme package")
		fromReader, err := checksums.ComputeChecksum(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, checksums.ComputeChecksumBytes(data), fromReader)
	})
}

func TestNormalizeChecksum(t *testing.T) {
	checksums := NewChecksumService()

	assert.Equal(t, "abc123", checksums.NormalizeChecksum("  ABC123 "))
	assert.Equal(t, "abc123", checksums.NormalizeChecksum("blake3:abc123"))
	assert.Equal(t, "abc123", checksums.NormalizeChecksum("BLAKE3:ABC123"))
}

func TestIsValidChecksum(t *testing.T) {
	checksums := NewChecksumService()
	valid := checksums.ComputeChecksumBytes([]byte("x"))

	assert.True(t, checksums.IsValidChecksum(valid))
	assert.True(t, checksums.IsValidChecksum("blake3:"+valid))
	assert.False(t, checksums.IsValidChecksum(""))
	assert.False(t, checksums.IsValidChecksum("zzzz"))
	assert.False(t, checksums.IsValidChecksum(valid[:63]))
}
