// Command arclear runs the accounts-receivable open-item clearing
// pipeline: export, reconciliation, clearing instruction generation,
// posting and case closing, per configured entity.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/receivia/arclear/internal/backend"
	"github.com/receivia/arclear/internal/checkpoint"
	"github.com/receivia/arclear/internal/config"
	"github.com/receivia/arclear/internal/customer"
	"github.com/receivia/arclear/internal/database"
	"github.com/receivia/arclear/internal/domain"
	"github.com/receivia/arclear/internal/dump"
	"github.com/receivia/arclear/internal/pipeline"
	"github.com/receivia/arclear/internal/report"
	"github.com/receivia/arclear/internal/rules"
	"github.com/receivia/arclear/internal/runlog"
	"github.com/receivia/arclear/internal/scheduler"
	"github.com/receivia/arclear/pkg/logger"
)

// Exit codes, stable for the wrapping automation.
const (
	exitConfig  = 1
	exitRules   = 2
	exitStorage = 3
	exitRun     = 4
)

func main() {
	entity := flag.String("entity", "", "run a single entity, overriding its activity flag")
	schedule := flag.String("schedule", "", "cron expression for repeated runs (default: run once)")
	history := flag.Bool("history", false, "print the latest recorded run and exit")
	dropDir := flag.String("drop-dir", "", "export drop directory for the file backend (default: <data dir>/drop)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(exitConfig)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	db, err := database.New(database.Config{Path: cfg.HistoryDBPath(), Name: "runlog"})
	if err != nil {
		log.Error().Err(err).Msg("Failed to open run history database")
		os.Exit(exitStorage)
	}
	defer db.Close()

	if err := db.HealthCheck(context.Background()); err != nil {
		log.Error().Err(err).Msg("Run history database failed its health check")
		os.Exit(exitStorage)
	}

	historyRepo, err := runlog.NewRepository(db, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize run history")
		os.Exit(exitStorage)
	}

	if *history {
		if err := printHistory(historyRepo); err != nil {
			log.Error().Err(err).Msg("Failed to read run history")
			os.Exit(exitStorage)
		}
		return
	}

	clearingRules, err := rules.Load(cfg.RulesPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load clearing rules")
		os.Exit(exitRules)
	}

	var customers map[int64]domain.Customer
	if cfg.CustomerPath != "" {
		customers, err = customer.Load(cfg.CustomerPath)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load customer master")
			os.Exit(exitConfig)
		}
		log.Info().Int("customers", len(customers)).Msg("Customer master loaded")
	}

	cp, err := checkpoint.Open(cfg.CheckpointPath(), log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open checkpoint store")
		os.Exit(exitStorage)
	}

	drop := *dropDir
	if drop == "" {
		drop = cfg.DataDir + "/drop"
	}
	if err := os.MkdirAll(drop, 0755); err != nil {
		log.Error().Err(err).Msg("Failed to create drop directory")
		os.Exit(exitConfig)
	}
	be := backend.NewFileDrop(drop, log)
	defer be.Close()

	p := pipeline.New(be, clearingRules, cp, dump.New(cfg.DumpDir()), pipeline.Options{
		Customers: customers,
		History:   historyRepo,
		ReportDir: cfg.ReportDir,
	}, log)

	runOnce := func() error {
		summaries, err := p.Run(context.Background(), *entity)
		logSummaries(log, summaries)
		return err
	}

	if *schedule != "" {
		s := scheduler.New(log)
		if err := s.Start(*schedule, runOnce); err != nil {
			log.Error().Err(err).Msg("Failed to start scheduler")
			os.Exit(exitConfig)
		}
		select {} // run until killed
	}

	if err := runOnce(); err != nil {
		log.Error().Err(err).Msg("Run failed")
		os.Exit(exitRun)
	}
}

func logSummaries(log zerolog.Logger, summaries []report.Summary) {
	for _, s := range summaries {
		if s.Skipped {
			log.Warn().Str("entity", s.Entity).Str("reason", s.Reason).Msg("Entity not processed")
			continue
		}
		log.Info().
			Str("entity", s.Entity).
			Int("items", s.ItemCount).
			Int("matched", s.MatchedCount).
			Int("cleared", s.ClearedCount).
			Msg("Entity processed")
	}
}

func printHistory(repo *runlog.Repository) error {
	run, err := repo.LatestRun()
	if err != nil {
		return err
	}
	if run == nil {
		fmt.Println("no recorded runs")
		return nil
	}

	finished := "-"
	if run.FinishedAt != nil {
		finished = run.FinishedAt.Format("2006-01-02 15:04:05")
	}
	fmt.Printf("run %d  started %s  finished %s  status %s  entities %s\n",
		run.ID, run.StartedAt.Format("2006-01-02 15:04:05"), finished, run.Status, run.Entities)

	events, err := repo.StageEvents(run.ID)
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Printf("  %s  %-6s %-26s %-8s %s\n",
			ev.CreatedAt.Format("15:04:05"), ev.Entity, ev.Stage, ev.Status, ev.Detail)
	}
	return nil
}
