package billing

import (
	"testing"
	"time"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	now := time.Now()
	tolerance := 5 * time.Minute

	tests := []struct {
		name    string
		payload []byte
		header  string
		wantErr error
	}{
		{name: "valid", payload: payload, header: SignatureHeader(now, payload, secret)},
		{
			name: "valid with extra unknown scheme", payload: payload,
			header: "v0=deadbeef," + SignatureHeader(now, payload, secret),
		},
		{
			name: "just inside tolerance", payload: payload,
			header: SignatureHeader(now.Add(-tolerance+time.Second), payload, secret),
		},
		{name: "empty header", payload: payload, header: "", wantErr: ErrBadSignature},
		{name: "missing timestamp", payload: payload, header: "v1=deadbeef", wantErr: ErrBadSignature},
		{name: "missing signature", payload: payload, header: "t=12345", wantErr: ErrBadSignature},
		{name: "garbage timestamp", payload: payload, header: "t=lol,v1=deadbeef", wantErr: ErrBadSignature},
		{
			name: "tampered payload", payload: []byte(`{"id":"evt_2"}`),
			header: SignatureHeader(now, payload, secret), wantErr: ErrBadSignature,
		},
		{
			name: "wrong secret", payload: payload,
			header: SignatureHeader(now, payload, "whsec_other"), wantErr: ErrBadSignature,
		},
		{
			name: "expired timestamp", payload: payload,
			header: SignatureHeader(now.Add(-tolerance-time.Minute), payload, secret), wantErr: ErrBadSignature,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.payload, tt.header, secret, tolerance, now)
			if err != tt.wantErr {
				t.Errorf("VerifySignature() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifySignatureZeroToleranceSkipsAgeCheck(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{}`)
	old := time.Now().Add(-24 * time.Hour)
	if err := VerifySignature(payload, SignatureHeader(old, payload, secret), secret, 0, time.Now()); err != nil {
		t.Errorf("VerifySignature() error = %v, want nil with tolerance disabled", err)
	}
}
