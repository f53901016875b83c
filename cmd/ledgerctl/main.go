package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/google/uuid"

	"moneymanager/internal/backend"
	"moneymanager/internal/cli"
	"moneymanager/internal/config"
	"moneymanager/internal/core"
	"moneymanager/internal/currency"
	"moneymanager/internal/ledger"
	"moneymanager/internal/log"
	"moneymanager/internal/services"
	"moneymanager/internal/sheets"
	"moneymanager/internal/sheets/xlsx"
)

type Params struct {
	Action    string `descr:"What to do" positional:"true" alts:"summary,months,export-xlsx,import-xlsx,dump" strict:"true"`
	Month     string `descr:"Month key YYYY-MM, defaults to the current month" optional:"true"`
	Display   string `descr:"Display currency: USD or the configured secondary" optional:"true"`
	File      string `descr:"Workbook path for export-xlsx and import-xlsx" optional:"true"`
	Overwrite string `descr:"Comma separated months that import-xlsx may overwrite, or 'all'" optional:"true"`
	Offline   bool   `descr:"Use the fallback exchange rates instead of fetching" optional:"true"`
}

func main() {
	boa.NewCmdT[Params]("ledgerctl").
		WithShort("Inspect and back up the moneymanager ledger").
		WithLong("Reads the ledger from the configured storage backend (DATA_BACKEND, SQLITE_DB_PATH) and prints month summaries, lists months, dumps the history as YAML or moves it to and from an XLSX workbook.").
		WithRunFunc(func(params *Params) {
			if err := run(params); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}).
		Run()
}

func run(p *Params) error {
	cli.LoadEnvFile()
	cfg := config.Load()
	level := cfg.LogLevel
	if level == "info" {
		level = "warn"
	}
	logger := cli.SetupLogger(level, log.ComponentApp)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	store, err := backend.NewFactory(logger).CreateStore(ctx, backendCfg)
	if err != nil {
		return err
	}
	if store.Cleanup != nil {
		defer store.Cleanup()
	}

	manager, err := ledger.NewManager(ctx, ledger.KVHistoryStore{KV: store.Store}, ledger.WithLogger(logger))
	if err != nil {
		return err
	}

	switch p.Action {
	case "months":
		return printMonths(os.Stdout, manager.History(), core.MonthKeyOf(time.Now()))
	case "dump":
		return dumpYAML(os.Stdout, manager.History())
	case "summary":
		return summary(ctx, p, cfg, manager, logger)
	case "export-xlsx", "import-xlsx":
		if p.File == "" {
			return errors.New("--file is required")
		}
		svc := services.NewLedgerService(manager, staticRates{currency.FallbackTable(cfg.SecondaryCurrency)}, nil,
			xlsx.New(p.File, uuid.NewString), logger)
		if p.Action == "export-xlsx" {
			stats, err := svc.Export(ctx, sheets.Credentials{})
			if err != nil {
				return err
			}
			fmt.Printf("Exported %d transactions across %d months to %s\n", stats.TransactionsCount, stats.MonthsCount, p.File)
			return nil
		}
		return importWorkbook(ctx, svc, p)
	}
	return fmt.Errorf("unknown action %q", p.Action)
}

func summary(ctx context.Context, p *Params, cfg *config.Config, manager *ledger.Manager, logger *log.Logger) error {
	key := core.MonthKeyOf(time.Now())
	if p.Month != "" {
		k, err := core.ParseMonthKey(p.Month)
		if err != nil {
			return err
		}
		key = k
	}
	display, err := currency.ParseDisplay(p.Display, cfg.SecondaryCurrency)
	if err != nil {
		return err
	}

	refresher := currency.NewRefresher(
		currency.NewFetcher(cfg.RatesURL, cfg.SecondaryCurrency),
		cfg.RatesRefreshInterval, cfg.SecondaryCurrency, logger)
	if !p.Offline {
		if _, err := refresher.Refresh(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: using fallback exchange rates: %v\n", err)
		}
	}

	svc := services.NewLedgerService(manager, refresher, nil, nil, logger)
	s, _, err := svc.Summary(key, display, svc.Rates())
	if err != nil {
		return err
	}
	renderSummary(os.Stdout, s)
	return nil
}

func importWorkbook(ctx context.Context, svc *services.LedgerService, p *Params) error {
	req := services.ImportRequest{Decided: p.Overwrite != ""}
	if strings.EqualFold(p.Overwrite, "all") {
		incoming, err := xlsx.New(p.File, uuid.NewString).Import(ctx, sheets.Credentials{})
		if err != nil {
			return err
		}
		req.Overwrite = svc.Manager().Conflicts(incoming)
	} else if p.Overwrite != "" {
		for _, raw := range strings.Split(p.Overwrite, ",") {
			k, err := core.ParseMonthKey(strings.TrimSpace(raw))
			if err != nil {
				return err
			}
			req.Overwrite = append(req.Overwrite, k)
		}
	}

	out, err := svc.Import(ctx, req)
	if errors.Is(err, services.ErrUnconfirmedConflicts) {
		return fmt.Errorf("months already exist: %s (pass --overwrite)", joinKeys(out.Conflicts))
	}
	if err != nil {
		return err
	}
	fmt.Printf("Imported %s: inserted [%s] overwritten [%s] skipped [%s]\n", p.File,
		joinKeys(out.Result.Inserted), joinKeys(out.Result.Overwritten), joinKeys(out.Result.Skipped))
	return nil
}

// staticRates serves a fixed table; file backups never convert amounts.
type staticRates struct{ t currency.Table }

func (s staticRates) Current() currency.Table { return s.t }

func joinKeys(keys []core.MonthKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}
