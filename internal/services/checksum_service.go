package services

import (
	"encoding/hex"
	"io"
	"regexp"
	"strings"

	"github.com/zeebo/blake3"
)

// ChecksumService computes BLAKE3 content checksums for uploaded theme
// packages
type ChecksumService struct {
	checksumRegex *regexp.Regexp
}

// NewChecksumService creates a new ChecksumService
func NewChecksumService() *ChecksumService {
	return &ChecksumService{
		checksumRegex: regexp.MustCompile(`^[a-f0-9]{64}$`),
	}
}

// ComputeChecksum computes the BLAKE3 checksum of a reader
func (s *ChecksumService) ComputeChecksum(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ComputeChecksumBytes computes the BLAKE3 checksum of bytes
func (s *ChecksumService) ComputeChecksumBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NormalizeChecksum normalizes a checksum string to lowercase without the
// optional "blake3:" prefix
func (s *ChecksumService) NormalizeChecksum(checksum string) string {
	normalized := strings.TrimSpace(checksum)

	if strings.HasPrefix(strings.ToLower(normalized), "blake3:") {
		normalized = normalized[7:]
	}

	return strings.ToLower(normalized)
}

// IsValidChecksum checks if a string is a valid BLAKE3-256 checksum
func (s *ChecksumService) IsValidChecksum(checksum string) bool {
	if strings.TrimSpace(checksum) == "" {
		return false
	}

	return s.checksumRegex.MatchString(s.NormalizeChecksum(checksum))
}
