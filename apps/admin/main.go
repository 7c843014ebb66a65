package main

import (
	"log"
	"os"

	"github.com/MC-tan/school-database-app/core"
	"github.com/MC-tan/school-database-app/storage/database"
	"github.com/MC-tan/school-database-app/storage/database/sqlxrepos"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)

	// start CLI
	cli := newCommandLine(db.DB, sqlxrepos.NewUserRepository(db), os.Stdout)
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
