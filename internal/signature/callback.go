// Package signature authenticates payment gateway traffic. The two schemes here belong to different
// gateway families and use different canonical strings; keep them separate.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// CallbackVerifier checks HMAC-SHA256 signatures over "gatewayOrderRef|gatewayPaymentRef".
type CallbackVerifier struct {
	secret []byte
}

func NewCallbackVerifier(secret string) *CallbackVerifier {
	return &CallbackVerifier{secret: []byte(secret)}
}

// Sign returns the hex signature the gateway is expected to send for the pair.
func (v *CallbackVerifier) Sign(gatewayOrderRef, gatewayPaymentRef string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderRef + "|" + gatewayPaymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether provided is byte-for-byte the lowercase hex signature for the pair.
// Malformed input simply fails.
func (v *CallbackVerifier) Verify(gatewayOrderRef, gatewayPaymentRef, provided string) bool {
	if len(v.secret) == 0 || gatewayOrderRef == "" || gatewayPaymentRef == "" || provided == "" {
		return false
	}
	return hmac.Equal([]byte(provided), []byte(v.Sign(gatewayOrderRef, gatewayPaymentRef)))
}
