package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MC-tan/school-database-app/core/identity"
	"github.com/MC-tan/school-database-app/core/user"
	"github.com/MC-tan/school-database-app/storage/database/inmem"
	"github.com/MC-tan/school-database-app/tests"
)

var usrRepo user.Repository

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	t.Helper()

	usrRepo = inmemdb.NewUserRepository(inmemdb.Open())
	var out bytes.Buffer
	cli := newCommandLine(nil, usrRepo, &out)
	cli.nowFunc = func() time.Time { return time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC) }
	return cli, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		if errors.Cause(err) != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err == nil || err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	case err != nil:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var ran []string
	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		ran = append(ran, command)
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "student_photos", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}
	assert.Equal(t, []string{"up", "up-by-one", "up-to", "down", "down-to", "redo", "reset", "status", "version", "create", "fix"}, ran)
}

func Test_commandLine_addUser(t *testing.T) {
	cli, _ := setup(t)

	existing := testutil.CreateUser(t, usrRepo, "Kru Somsri", "somsri", "somsri@test.cd", "mdr", []string{user.RoleTeacher}, false)

	type extra struct {
		pwd       string
		wantRoles []string
		wantName  string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"adduser", "-username", "malee"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"adduser", "-lol"}, wantErr: errHelp},
		{
			name: "new teacher", args: []string{"adduser", "-username", "Malee", "-email", "malee@test.cd"},
			extra: extra{pwd: "LolC@t123", wantRoles: user.TeacherRoles, wantName: "malee"},
		},
		{
			name: "new admin", args: []string{"adduser", "-username", "boss", "-name", "The Boss", "-admin"},
			extra: extra{pwd: "LolC@t123", wantRoles: user.AllRoles, wantName: "The Boss"},
		},
		{
			name: "existing user is activated", args: []string{"adduser", "-username", "somsri"},
			extra: extra{pwd: "LolC@t123", wantRoles: existing.Roles, wantName: existing.Name},
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			checkErr(t, tt, err)

			if extra, ok := tt.extra.(extra); ok && err == nil {
				usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{Username: strings.ToLower(tt.args[2])})
				require.NoError(t, err)
				assert.True(t, usr.IsActive)
				assert.Equal(t, extra.wantRoles, usr.Roles)
				assert.Equal(t, extra.wantName, usr.Name)
				assert.NoError(t, usr.CheckPassword(extra.pwd))
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", "AWE@test.cd"}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				if err != nil {
					t.Fatalf("GetUser() failed, %v", err)
				}
				if err = refreshedUsr.CheckPassword(tt.extra.(extra).pwd); err != nil {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_checkID(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "no args", args: []string{"checkid"}, wantErr: errHelp},
		{name: "valid", args: []string{"checkid", "-id", "1-1017-00207-48-0"}, extra: "1101700207480: valid\n"},
		{name: "checksum", args: []string{"checkid", "-id", "1101700207483"}, wantErrStr: "national_id: national ID is invalid", extra: "1101700207483: national ID is invalid\n"},
		{name: "too short", args: []string{"checkid", "-id", "12345"}, wantErrStr: "national_id: national ID must have 13 digits", extra: "12345: national ID must have 13 digits\n"},
		{
			name: "with birth date", args: []string{"checkid", "-id", "1101700207480", "-birthdate", "2015-03-20"},
			extra: "1101700207480: valid\nage: 9 years 2 months 26 days\n",
		},
		{
			name: "birth date in the future", args: []string{"checkid", "-id", "1101700207480", "-birthdate", "2024-06-16"},
			wantErrStr: "birth_date: birth date cannot be in the future", extra: "1101700207480: valid\n2024-06-16: birth date cannot be in the future\n",
		},
		{name: "bad birth date", args: []string{"checkid", "-id", "1101700207480", "-birthdate", "lol"}, wantErrStr: `parsing birth date: parsing time "lol" as "2006-01-02": cannot parse "lol" as "2006"`},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			checkErr(t, tt, err)
			if want, ok := tt.extra.(string); ok {
				assert.Equal(t, want, out.String())
			}
			if err != nil && tt.wantErrStr != "" && tt.extra != nil {
				var rej *identity.Rejection
				assert.True(t, errors.As(err, &rej), "want a rejection, got %T", err)
			}
		})
	}
}

func Test_commandLine_completeID(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "no args", args: []string{"completeid"}, wantErr: errHelp},
		{name: "bad prefix", args: []string{"completeid", "-prefix", "123"}, wantErr: errBadPrefix},
		{name: "completed", args: []string{"completeid", "-prefix", "1-1017-00207-48"}, extra: "1101700207480\n"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			checkErr(t, tt, cli.run(args))
			if want, ok := tt.extra.(string); ok {
				assert.Equal(t, want, out.String())
			}
		})
	}
}
