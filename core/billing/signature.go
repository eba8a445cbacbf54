package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrBadSignature is terminal: the provider does not retry on 400, it
	// indicates tampering or a misconfigured secret.
	ErrBadSignature = errors.New("webhook signature verification failed")
)

// ComputeSignature returns the hex HMAC-SHA256 of "<t>.<payload>" keyed with
// secret, per Stripe's v1 scheme.
func ComputeSignature(t time.Time, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(t.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader builds a Stripe-Signature header value; used by tests.
func SignatureHeader(t time.Time, payload []byte, secret string) string {
	return "t=" + strconv.FormatInt(t.Unix(), 10) + ",v1=" + ComputeSignature(t, payload, secret)
}

// VerifySignature checks a "t=<unix>,v1=<hex>" header against the payload.
// Comparison is constant-time; timestamps older than tolerance are rejected
// to blunt replay of captured deliveries.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	var ts time.Time
	var sigs []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			unix, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return ErrBadSignature
			}
			ts = time.Unix(unix, 0)
		case "v1":
			sigs = append(sigs, kv[1])
		}
	}
	if ts.IsZero() || len(sigs) == 0 {
		return ErrBadSignature
	}
	if tolerance > 0 && now.Sub(ts) > tolerance {
		return ErrBadSignature
	}

	expected := ComputeSignature(ts, payload, secret)
	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrBadSignature
}
