package freebox

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // HMAC-SHA1 is what the box verifies.
	"encoding/hex"
)

// DerivePassword computes the session password for a login challenge:
// the lowercase hex HMAC-SHA1 of the challenge keyed by the app token.
func DerivePassword(challenge, appToken string) string {
	mac := hmac.New(sha1.New, []byte(appToken))
	mac.Write([]byte(challenge))

	return hex.EncodeToString(mac.Sum(nil))
}
