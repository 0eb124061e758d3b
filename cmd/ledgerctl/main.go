// Command ledgerctl runs ledger operations from the shell against the same
// SQLite file the server uses.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"finagent/internal/cli"
	"finagent/internal/commands"
	"finagent/internal/config"
	"finagent/internal/core"
	"finagent/internal/export"
	"finagent/internal/query"
	"finagent/internal/services"
	"finagent/internal/storage"
)

const usage = `usage: ledgerctl [-db path] <command> [args]

commands:
  add <amount> [-category c] [-note n]   record an expense
  total                                  total spending
  average                                average expense
  recent [-n limit]                      newest expenses
  categories                             spending by category
  delete <id>                            remove an expense
  export [-o file]                       write every expense as CSV
`

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(envOr("LOG_LEVEL", "warn"))

	global := flag.NewFlagSet("ledgerctl", flag.ExitOnError)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	dbPath := global.String("db", cfg.SQLiteDBPath, "ledger database file")
	_ = global.Parse(os.Args[1:])

	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}

	repo := cli.InitSQLite(logger, *dbPath)
	ledger := services.NewLedgerService(repo, nil)
	defer ledger.Close()

	facade := commands.NewFacade(ledger, query.NewService(ledger), cfg.RecentDefaultLimit).
		WithLocation(cfg.DisplayLocation())

	ctx, stop := cli.SignalContext()
	defer stop()

	if err := run(ctx, os.Stdout, facade, repo, global.Arg(0), global.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, commands.Describe(err))
		if errors.Is(err, commands.ErrUnknownCommand) {
			fmt.Fprint(os.Stderr, usage)
		}
		logger.Debug("Command failed", "command", global.Arg(0), "error", err)
		ledger.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, f *commands.Facade, repo *storage.SQLiteRepository, name string, args []string) error {
	var (
		reply string
		err   error
	)

	switch name {
	case "add":
		fs := flag.NewFlagSet("add", flag.ContinueOnError)
		category := fs.String("category", "", "category label")
		note := fs.String("note", "", "free-form note")
		amountArg, rest := "", args
		if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
			amountArg, rest = args[0], args[1:]
		}
		if err := fs.Parse(rest); err != nil {
			return fmt.Errorf("%w: %w", commands.ErrInvalidArgs, err)
		}
		if amountArg == "" {
			amountArg = fs.Arg(0)
		}
		amount, err := core.ParseAmount(amountArg)
		if err != nil {
			return err
		}
		reply, err = f.AddExpense(ctx, amount, *category, *note)
		if err != nil {
			return err
		}
	case "total":
		reply, err = f.GetTotal(ctx)
	case "average":
		reply, err = f.GetAverage(ctx)
	case "recent":
		fs := flag.NewFlagSet("recent", flag.ContinueOnError)
		n := fs.Int("n", 0, "number of expenses")
		if err := fs.Parse(args); err != nil {
			return fmt.Errorf("%w: %w", commands.ErrInvalidArgs, err)
		}
		reply, err = f.ListRecentExpenses(ctx, *n)
	case "categories":
		reply, err = f.AnalyzeSpendingByCategory(ctx)
	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("%w: delete needs an id", commands.ErrInvalidArgs)
		}
		id, perr := strconv.ParseInt(args[0], 10, 64)
		if perr != nil || id <= 0 {
			return fmt.Errorf("%w: id must be a positive integer", commands.ErrInvalidArgs)
		}
		reply, err = f.DeleteExpense(ctx, id)
	case "export":
		fs := flag.NewFlagSet("export", flag.ContinueOnError)
		path := fs.String("o", "", "output file (default stdout)")
		if err := fs.Parse(args); err != nil {
			return fmt.Errorf("%w: %w", commands.ErrInvalidArgs, err)
		}
		return exportCSV(ctx, out, repo, *path)
	default:
		return fmt.Errorf("%w: %q", commands.ErrUnknownCommand, name)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, reply)
	return err
}

func exportCSV(ctx context.Context, out io.Writer, repo *storage.SQLiteRepository, path string) error {
	all, err := repo.GetAll(ctx)
	if err != nil {
		return err
	}
	if path == "" {
		return export.WriteCSV(out, all)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(file)
	if err := export.WriteCSV(w, all); err != nil {
		file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Exported %s to %s\n", commands.ItemCount(len(all)), path)
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
