package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/MC-tan/school-database-app/core/user"
	"github.com/MC-tan/school-database-app/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword     // mockable
	gooseRunFunc     = database.RunMigration // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	usrRepo user.Repository
	out     io.Writer
	nowFunc func() time.Time
}

func newCommandLine(db *sql.DB, usrRepo user.Repository, out io.Writer) *commandLine {
	return &commandLine{db: db, usrRepo: usrRepo, out: out, nowFunc: time.Now}
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME [-email EMAIL] [-name NAME] [-admin] - create or update a staff account")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command: up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix")
	fmt.Fprintln(cli.out, "  checkid -id NATIONAL_ID [-birthdate YYYY-MM-DD] - check a national ID and a birth date")
	fmt.Fprintln(cli.out, "  completeid -prefix DIGITS - append the check digit to the 12 leading digits of a national ID")
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's full name. Defaults to the username.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every role. Teacher role otherwise.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	checkIDCmd := flag.NewFlagSet("checkid", flag.ContinueOnError)
	checkIDValue := checkIDCmd.String("id", "", "The national ID to check. Hyphens and spaces are ignored.")
	checkIDBirth := checkIDCmd.String("birthdate", "", "An optional birth date, formatted as YYYY-MM-DD.")

	completeIDCmd := flag.NewFlagSet("completeid", flag.ContinueOnError)
	completeIDPrefix := completeIDCmd.String("prefix", "", "The 12 leading digits of a national ID.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, checkIDCmd, completeIDCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserUname == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd, *addUserAdmin)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "checkid":
		if err := checkIDCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *checkIDValue == "" {
			checkIDCmd.Usage()
			return errHelp
		}
		return cli.checkID(*checkIDValue, *checkIDBirth)
	case "completeid":
		if err := completeIDCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *completeIDPrefix == "" {
			completeIDCmd.Usage()
			return errHelp
		}
		return cli.completeID(*completeIDPrefix)
	default:
		cli.printUsage()
		return errHelp
	}
}
