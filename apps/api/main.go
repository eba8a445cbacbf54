package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/gavasques/aluno-adm-portal-crm-sub009/apps/api/echo"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/billing"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/crm"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/student"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/user"
	emailsvc "github.com/gavasques/aluno-adm-portal-crm-sub009/services/email"
	logsvc "github.com/gavasques/aluno-adm-portal-crm-sub009/services/logger"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/storage/database"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/storage/database/sqlxrepos"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// the catalog cache is optional; an empty address disables it
	var rdb *redis.Client
	if conf.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Address,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
	}

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	usrSvc := user.NewService(conf, sqlxrepos.NewUserRepository(db), mailSvc)
	stdSvc := student.NewService(sqlxrepos.NewStudentRepository(db), mailSvc, conf.AppName)

	boardCache := crm.NewBoardCache()
	leadRepo := sqlxrepos.NewLeadRepository(db)
	crmSvc := crm.NewService(
		leadRepo,
		sqlxrepos.NewCatalogRepository(db, rdb, conf.Redis.CatalogTTL),
		boardCache,
		validate,
	)
	mover := crm.NewMover(leadRepo, crmSvc, boardCache, crm.NewLoggerNotifier(logger), conf.CRM)

	billingSvc := billing.NewService(sqlxrepos.NewBillingRepository(db), logger, conf.Billing)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	if conf.Debug {
		go func() {
			if err := http.ListenAndServe("localhost:6060", http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		StudentSvc: stdSvc,
		CrmSvc:     crmSvc,
		Mover:      mover,
		BillingSvc: billingSvc,
		Validate:   validate,
		Translator: translator,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
