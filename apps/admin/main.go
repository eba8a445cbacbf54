package main

import (
	"log"
	"os"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/crm"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/user"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/storage/database"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/storage/database/sqlxrepos"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	cli := commandLine{
		conf:    conf,
		db:      db,
		usrRepo: sqlxrepos.NewUserRepository(db),
		crmSvc:  crm.NewService(sqlxrepos.NewLeadRepository(db), sqlxrepos.NewCatalogRepository(db, nil, 0), crm.NewBoardCache(), validate),
	}
	if err := cli.run(os.Args); err != nil {
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
