package user

import (
	"testing"
	"time"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
)

func TestMakeVerifyToken(t *testing.T) {
	conf := &core.Config{
		SecretKey: "secret",
		Server:    core.ServerConfig{PasswordResetTimeoutDelta: 3 * 24 * time.Hour},
	}
	svc := NewService(conf, nil, nil)

	now := time.Now()
	usr := User{
		ID:        "c2d91e95-3bd5-425c-9628-43a19161ff2c",
		Name:      "T",
		Username:  "t",
		Email:     "t@test.test",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = usr.SetPassword("pwd")

	validToken, err := svc.MakeToken(usr)
	if err != nil {
		t.Fatalf("MakeToken(): %v", err)
	}

	// generate an expired token
	dayLate := conf.Server.PasswordResetTimeoutDelta + (24 * time.Hour)
	NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := svc.MakeToken(usr)
	if err != nil {
		t.Fatalf("MakeToken(): %v", err)
	}
	NowFunc = time.Now // reset

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.verifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTokenInvalidatedByStateChange(t *testing.T) {
	conf := &core.Config{
		SecretKey: "secret",
		Server:    core.ServerConfig{PasswordResetTimeoutDelta: 3 * 24 * time.Hour},
	}
	svc := NewService(conf, nil, nil)

	usr := User{ID: "b0a3f2e1-0000-4c7a-8f7e-5f5c3f6f0001", Email: "t@test.test", IsActive: true}
	_ = usr.SetPassword("pwd")

	token, err := svc.MakeToken(usr)
	if err != nil {
		t.Fatalf("MakeToken(): %v", err)
	}
	if err = svc.verifyToken(usr, token); err != nil {
		t.Fatalf("verifyToken(): %v", err)
	}

	// a password change voids outstanding tokens
	changed := usr
	_ = changed.SetPassword("newpwd")
	if err = svc.verifyToken(changed, token); err != errInvalidToken {
		t.Errorf("verifyToken() after password change error = %v, wantErr %v", err, errInvalidToken)
	}

	// so does a login
	loggedIn := usr
	loggedIn.LastLogin = time.Now().Add(time.Minute)
	if err = svc.verifyToken(loggedIn, token); err != errInvalidToken {
		t.Errorf("verifyToken() after login error = %v, wantErr %v", err, errInvalidToken)
	}
}
