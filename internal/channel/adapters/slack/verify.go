package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

const (
	headerRequestTimestamp = "X-Slack-Request-Timestamp"
	headerSignature        = "X-Slack-Signature"
	signatureVersion       = "v0"
)

// Sign computes the request signature Slack sends in X-Slack-Signature.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// ValidateSignature reports whether signature matches the body signed with
// secret. The comparison is constant time.
func ValidateSignature(secret, timestamp string, body []byte, signature string) bool {
	expected := Sign(secret, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// validateHeaders reports whether both signing headers are present.
func validateHeaders(h http.Header) bool {
	return strings.TrimSpace(h.Get(headerRequestTimestamp)) != "" &&
		strings.TrimSpace(h.Get(headerSignature)) != ""
}
