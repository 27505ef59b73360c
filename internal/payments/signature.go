package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID" under secret, the
// form the payment gateway uses for checkout callbacks.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	want, err := hex.DecodeString(Sign(secret, orderID, paymentID))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}
