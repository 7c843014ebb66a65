package user

import (
	"testing"
	"time"

	"github.com/volatiletech/null/v8"
)

func TestMakeVerifyToken(t *testing.T) {
	gen := newTokenGenerator("secret", 3*24*time.Hour)

	now := time.Now()
	usr := User{
		ID:        "4b1a1fd4-6c4a-4d4c-9a43-7a8d3a4b6f10",
		Name:      "T",
		Username:  "t",
		Email:     "t@test.test",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: null.TimeFrom(now),
	}
	_ = usr.SetPassword("pwd")

	validToken, err := gen.makeToken(usr)
	if err != nil {
		t.Fatalf("makeToken(): %v", err)
	}

	// generate an expired token
	dayLate := gen.timeout + (24 * time.Hour)
	nowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := gen.makeToken(usr)
	if err != nil {
		t.Fatalf("makeToken(): %v", err)
	}
	nowFunc = time.Now // reset

	// the token dies with the password
	changedPwd := usr
	_ = changedPwd.SetPassword("new-pwd")

	// and with a new login
	loggedIn := usr
	loggedIn.LastLogin = null.TimeFrom(now.Add(time.Hour))

	otherSecret := newTokenGenerator("other secret", gen.timeout)

	tests := []struct {
		name    string
		gen     tokenGenerator
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", gen: gen, usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", gen: gen, usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", gen: gen, usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", gen: gen, usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", gen: gen, usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", gen: gen, usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "password changed", gen: gen, usr: changedPwd, token: validToken, wantErr: errInvalidToken},
		{name: "logged in since", gen: gen, usr: loggedIn, token: validToken, wantErr: errInvalidToken},
		{name: "other secret key", gen: otherSecret, usr: usr, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", gen: gen, usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.gen.verifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "4b1a1fd4-6c4a-4d4c-9a43-7a8d3a4b6f10"}
	got, err := decodeUID(EncodeUID(usr))
	if err != nil {
		t.Fatalf("decodeUID() error = %v", err)
	}
	if got != usr.ID {
		t.Errorf("decodeUID() = %s, want %s", got, usr.ID)
	}
	if _, err := decodeUID("%%%"); err == nil {
		t.Error("decodeUID() error = nil, want an error")
	}
}

func TestMaxRolePriority(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  int
	}{
		{name: "no roles", want: 0},
		{name: "unknown role", roles: []string{"lol"}, want: 0},
		{name: "teacher", roles: []string{RoleTeacher}, want: 11},
		{name: "teacher & admin", roles: []string{RoleTeacher, RoleAdmin}, want: 21},
		{name: "all", roles: AllRoles, want: 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxRolePriority(tt.roles); got != tt.want {
				t.Errorf("MaxRolePriority() = %d, want %d", got, tt.want)
			}
		})
	}
}
