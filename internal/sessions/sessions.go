package sessions

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// FallbackSessionID derives a session identifier for trackers that did not
// send one. The signature rotates daily at midnight UTC so actors cannot be
// correlated across days. IP addresses are never stored, only hashed.
func FallbackSessionID(website, ipAddress, userAgent, salt string) string {
	today := time.Now().UTC().Format("2006-01-02")
	dailySalt := fmt.Sprintf("%s-%s", today, salt)
	data := fmt.Sprintf("%s.%s.%s.%s", dailySalt, website, ipAddress, userAgent)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
