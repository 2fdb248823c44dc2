// Command-line maintenance entrypoint for MediBridge
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"medibridge/medibridge/config"
	"medibridge/medibridge/services/pipeline"
	"medibridge/medibridge/services/translation"
	"medibridge/medibridge/sources/psql"
	"medibridge/medibridge/sources/psql/dao"
	"medibridge/medibridge/utils/logging"

	"go.uber.org/zap"
)

// noBroadcast drops realtime events; nobody is connected to this process.
type noBroadcast struct{}

func (noBroadcast) Emit(string, string, any) error { return nil }

// inline runs jobs on the caller's goroutine.
type inline struct{}

func (inline) Submit(job pipeline.Job) error {
	job(context.Background())
	return nil
}

func main() {
	if len(os.Args) < 2 || os.Args[1] != "settle" {
		usage()
		os.Exit(1)
	}
	fs := flag.NewFlagSet("settle", flag.ExitOnError)
	limit := fs.Int("limit", 500, "maximum number of messages to settle")
	timeout := fs.Duration("timeout", 10*time.Minute, "overall deadline")
	fs.Parse(os.Args[2:])

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	if err := logging.InitLogger(cfg.LogDir); err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer logging.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := psql.NewDatabase(ctx, cfg)
	if err != nil {
		logging.ErrorLogger.Error("database connection error", zap.Error(err))
		fmt.Fprintln(os.Stderr, "database connection error:", err)
		os.Exit(1)
	}
	defer db.Close()

	ai := translation.NewServices(cfg)
	p := pipeline.New(cfg, dao.NewConsultationDAO(db.DB), dao.NewMessageDAO(db.DB), noBroadcast{},
		ai.Translator, inline{}, nil)

	settled, err := p.SettlePending(ctx, *limit)
	if err != nil {
		logging.ErrorLogger.Error("settle failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "settle failed:", err)
		os.Exit(1)
	}
	logging.AppLogger.Info("settled pending messages", zap.Int("count", settled))
	fmt.Printf("Settled %d message(s)\n", settled)
}

func usage() {
	fmt.Println("MediBridge CLI usage:")
	fmt.Println("  medibridge settle [-limit N] [-timeout D]   # translate messages left unsettled")
}
