package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/jask/subwatch/internal/batchlog"
	"github.com/jask/subwatch/internal/config"
	"github.com/jask/subwatch/internal/database"
	"github.com/jask/subwatch/internal/database/repository"
	"github.com/jask/subwatch/internal/service"
)

// app bundles the services a subcommand may need.
type app struct {
	cfg           config.Config
	loc           *time.Location
	subscriptions *service.SubscriptionService
	merchants     *service.MerchantService
	transactions  *service.TransactionService
	ingest        *service.IngestService
	alerts        *service.AlertService
	savings       *service.SavingsService
	maintenance   *service.MaintenanceService
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		usage()
		return
	}

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cmd == "init" {
		if err := config.Save(cfg); err != nil {
			log.Fatalf("save config: %v", err)
		}
		fmt.Println(okStyle.Render("config written"))
		return
	}

	ctx := context.Background()
	db, batches := mustOpen(ctx, cfg)
	defer db.Close()
	defer batches.Close()

	a := newApp(cfg, db, batches)
	if err := a.run(ctx, cmd, args); err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func mustOpen(ctx context.Context, cfg config.Config) (*sql.DB, *batchlog.Store) {
	if err := os.MkdirAll(filepath.Dir(cfg.Ingest.BatchLog), 0o755); err != nil {
		log.Fatalf("mkdir %s: %v", filepath.Dir(cfg.Ingest.BatchLog), err)
	}

	if err := database.RunMigrations(cfg.Database.Path); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	seeds, err := database.LoadRuleSeeds(cfg.Rules.SeedFile)
	if err != nil {
		log.Fatalf("load rule seeds: %v", err)
	}
	if _, err := database.SeedRules(ctx, db, seeds, cfg.Rules.Version); err != nil {
		log.Fatalf("seed rules: %v", err)
	}

	batches, err := batchlog.Open(cfg.Ingest.BatchLog)
	if err != nil {
		log.Fatalf("open batch log: %v", err)
	}
	return db, batches
}

func newApp(cfg config.Config, db *sql.DB, batches *batchlog.Store) *app {
	loc, err := time.LoadLocation(cfg.UI.Timezone)
	if err != nil {
		log.Printf("warn: using local timezone due to load failure: %v", err)
		loc = time.Local
	}
	logger := log.New(os.Stderr, "subwatch: ", log.LstdFlags)

	// repositories
	subRepo := repository.NewSubscriptionRepo(db)
	merchantRepo := repository.NewMerchantRepo(db)
	ruleRepo := repository.NewRuleRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	alertRepo := repository.NewAlertRepo(db)
	savingRepo := repository.NewSavingRepo(db)

	subs := &service.SubscriptionService{
		Subscriptions: subRepo,
		Merchants:     merchantRepo,
		Thresholds:    cfg.Analytics.Thresholds(),
	}
	merchants := &service.MerchantService{Rules: ruleRepo, Merchants: merchantRepo, Version: cfg.Rules.Version}

	return &app{
		cfg:           cfg,
		loc:           loc,
		subscriptions: subs,
		merchants:     merchants,
		transactions:  &service.TransactionService{Transactions: txRepo},
		ingest: &service.IngestService{
			Merchants:     merchants,
			Subscriptions: subRepo,
			Transactions:  txRepo,
			Batches:       batches,
			Log:           logger,
			Location:      loc,
			Currency:      cfg.UI.Currency,
		},
		alerts: &service.AlertService{Alerts: alertRepo, Subscriptions: subs, Log: logger},
		savings: &service.SavingsService{
			Savings:       savingRepo,
			Subscriptions: subs,
			Goals:         cfg.Savings.Goals(),
			Currency:      cfg.UI.Currency,
		},
		maintenance: &service.MaintenanceService{DB: db, Batches: batches},
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "ingest":
		return a.cmdIngest(ctx, args)
	case "analyze":
		return a.cmdAnalyze(ctx, args)
	case "alerts":
		return a.cmdAlerts(ctx, args)
	case "savings":
		return a.cmdSavings(ctx, args)
	case "forecast":
		return a.cmdForecast(ctx, args)
	case "rules":
		return a.cmdRules(ctx, args)
	case "merchants":
		return a.cmdMerchants(ctx, args)
	case "subs", "subscriptions":
		return a.cmdSubscriptions(ctx, args)
	case "tx", "transactions":
		return a.cmdTransactions(ctx, args)
	case "reset":
		return a.cmdReset(ctx, args)
	case "demo":
		return a.cmdDemo(ctx, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: subwatch <command> [flags]

commands:
  init                                   write the current config to disk
  ingest -user U FILE                    import a CSV or XLSX statement
  analyze -user U                        run detection and recommendations
  alerts emit|list|read|dismiss|delete|stats -user U [ID]
  savings auto|add|list|delete|stats|achievement -user U
  forecast -user U [-months N]
  rules list|add|enable|disable|delete|synonym|unsynonym|suggest
  merchants list|rename|categories
  subs add|list|pause|resume|cancel|delete|stats -user U
  tx list|stats|status -user U
  reset [-user U]
  demo -user U [-seed N]                 load a sample portfolio
`)
}
