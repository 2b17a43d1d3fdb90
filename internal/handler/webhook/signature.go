package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	secretPrefix       = "whsec_"
	timestampTolerance = 5 * time.Minute
)

// VerifySignature checks the provider's HMAC over the raw payload. The
// signed content is "{id}.{timestamp}.{body}", keyed with the base64
// secret; the signature header carries space-separated "v1,<base64>"
// entries, any one of which may match.
func VerifySignature(secret, msgID, timestamp, sigHeader string, payload []byte, now time.Time) error {
	if msgID == "" || timestamp == "" || sigHeader == "" {
		return fmt.Errorf("missing signature headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid signature timestamp: %w", err)
	}
	if diff := now.Sub(time.Unix(ts, 0)); diff > timestampTolerance || diff < -timestampTolerance {
		return fmt.Errorf("signature timestamp outside tolerance")
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, secretPrefix))
	if err != nil {
		return fmt.Errorf("invalid signing secret: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msgID))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, entry := range strings.Fields(sigHeader) {
		parts := strings.SplitN(entry, ",", 2)
		if len(parts) != 2 || parts[0] != "v1" {
			continue
		}
		sig, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			continue
		}
		if hmac.Equal(expected, sig) {
			return nil
		}
	}

	return fmt.Errorf("no matching signature")
}

// Sign computes a valid "v1,<base64>" signature entry; used by tests and
// local tooling.
func Sign(secret, msgID, timestamp string, payload []byte) (string, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, secretPrefix))
	if err != nil {
		return "", fmt.Errorf("invalid signing secret: %w", err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msgID))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
