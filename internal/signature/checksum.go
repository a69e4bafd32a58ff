package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const checksumSeparator = "###"

// ChecksumSigner implements the pay-page X-VERIFY scheme: sha256 hex plus "###" plus the salt index.
type ChecksumSigner struct {
	secret    string
	saltIndex string
}

func NewChecksumSigner(secret, saltIndex string) *ChecksumSigner {
	return &ChecksumSigner{secret: secret, saltIndex: saltIndex}
}

// Generate signs an outbound request body for endpoint.
func (s *ChecksumSigner) Generate(payload, endpoint string) string {
	return GenerateChecksum(payload, endpoint, s.secret, s.saltIndex)
}

// Verify checks an inbound X-VERIFY header against the response payload.
func (s *ChecksumSigner) Verify(header, payload string) bool {
	return VerifyChecksum(header, payload, s.secret, s.saltIndex)
}

// GenerateChecksum returns hex(sha256(payload+endpoint+secret)) + "###" + saltIndex.
func GenerateChecksum(payload, endpoint, secret, saltIndex string) string {
	return sha256Hex(payload+endpoint+secret) + checksumSeparator + saltIndex
}

// HashPortion is the part of a callback checksum that depends on the payload.
func HashPortion(payload, secret string) string {
	return sha256Hex(payload + secret)
}

// VerifyChecksum compares the hash portion of header with sha256(payload+secret).
// The salt index is not hashed but must equal expectedSaltIndex. A header without a
// salt index is accepted only when expectedSaltIndex is empty.
func VerifyChecksum(header, payload, secret, expectedSaltIndex string) bool {
	if header == "" || secret == "" {
		return false
	}
	hash, salt, found := strings.Cut(strings.TrimSpace(header), checksumSeparator)
	if found && salt != expectedSaltIndex {
		return false
	}
	if !found && expectedSaltIndex != "" {
		return false
	}
	got, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	want := sha256.Sum256([]byte(payload + secret))
	return hmac.Equal(got, want[:])
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
