package directory

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// secretHash is the SECRET_HASH parameter required by app clients with a secret:
// base64(HMAC-SHA256(clientSecret, username + clientID)).
func secretHash(clientSecret, clientID, username string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// passwordFor derives the account password. Users never see it; the gateway signs in
// on their behalf with ADMIN_USER_PASSWORD_AUTH.
//
// Without a secret the legacy "{username}123!" form is used so accounts created by
// earlier deployments keep working.
func passwordFor(secret, username string) string {
	if secret == "" {
		return username + "123!"
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(username))
	// suffix satisfies the default pool policy (upper, lower, digit, symbol)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)) + "Aa1!"
}
