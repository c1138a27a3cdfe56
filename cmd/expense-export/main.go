// Command expense-export writes the filtered expense list as CSV, JSON or PDF.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"expensetracker/internal/cli"
	"expensetracker/internal/core"
	"expensetracker/internal/export"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
)

func main() {
	var (
		format     = flag.String("format", "csv", "output format: csv, json or pdf")
		category   = flag.String("category", "", "only this category")
		categories = flag.String("categories", "", "comma separated category list")
		from       = flag.String("from", "", "earliest date, YYYY-MM-DD")
		to         = flag.String("to", "", "latest date, YYYY-MM-DD")
		query      = flag.String("q", "", "search description and category")
		sortField  = flag.String("sort", "date", "sort by date, amount or category")
		sortDir    = flag.String("dir", "desc", "sort direction: asc or desc")
		outDir     = flag.String("o", "", "write a dated file into this directory instead of stdout")
	)
	flag.Parse()

	cli.LoadEnvFile()
	// Logs go to stderr so stdout carries only the export.
	boot := cli.SetupLogger(log.ComponentExport, os.Stderr)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.ConfigureLogger(cfg, log.ComponentExport, os.Stderr)

	f, err := export.ParseFormat(*format)
	if err != nil {
		logger.Error("Invalid format", log.FieldError, err.Error())
		os.Exit(2)
	}

	ctx := context.Background()
	backend := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if backend.Cleanup != nil {
			_ = backend.Cleanup()
		}
	}()

	svc := services.NewExpenseService(backend.Repository, services.Options{Logger: logger})
	if err := svc.Load(ctx); err != nil {
		logger.Error("Failed to load expenses", log.FieldError, err.Error())
		os.Exit(1)
	}

	filter := core.Filter{
		Category:   *category,
		Categories: parseCategories(*categories),
		DateFrom:   *from,
		DateTo:     *to,
		SearchTerm: *query,
	}
	expenses := svc.List(ctx, filter, core.ParseSortOptions(*sortField, *sortDir))
	summary := svc.ExportSummary(ctx, filter)

	var out io.Writer = os.Stdout
	target := "stdout"
	if *outDir != "" {
		target = filepath.Join(*outDir, export.Filename("", f, svc.Now()))
		file, err := os.Create(target)
		if err != nil {
			logger.Error("Failed to create output file", log.FieldError, err.Error(), "path", target)
			os.Exit(1)
		}
		defer file.Close()
		out = file
	}

	if err := export.Write(out, f, expenses, svc.Now()); err != nil {
		logger.Error("Export failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	logger.Info("Export complete",
		"format", string(f),
		"target", target,
		log.FieldCount, summary.RecordCount,
		"total", summary.TotalAmount.String())
}

func parseCategories(raw string) []core.Category {
	var out []core.Category
	for _, part := range strings.Split(raw, ",") {
		if c, err := core.ParseCategory(strings.TrimSpace(part)); err == nil {
			out = append(out, c)
		}
	}
	return out
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
}
