// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/refmatch"
	"github.com/poiesic/refmatch/api"
	"github.com/poiesic/refmatch/config"
	"github.com/poiesic/refmatch/records"
	"github.com/poiesic/refmatch/search"
	"github.com/poiesic/refmatch/source"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "refmatch",
		Usage: "Abbreviation-aware fuzzy lookup over reference datasets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file (built-in defaults when empty)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Reconcile embedding caches and serve the search API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides http.addr)",
					},
					&cli.DurationFlag{
						Name:  "shutdown-timeout",
						Usage: "Grace period for in-flight requests on shutdown",
						Value: 10 * time.Second,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Run one query against a dataset",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dataset",
						Aliases:  []string{"d"},
						Usage:    "Dataset to search",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "filter",
						Aliases: []string{"f"},
						Usage:   "Exact-match filter as column=value (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "subject",
						Usage: "Force semantic matching",
					},
				},
			},
			{
				Name:   "reconcile",
				Usage:  "Bring persisted embedding caches in line with the records",
				Action: reconcileCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "dataset",
						Aliases: []string{"d"},
						Usage:   "Datasets to reconcile (all when omitted)",
					},
				},
			},
			{
				Name:  "caches",
				Usage: "Inspect and drop persisted embedding caches",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List persisted caches and their manifests",
						Action: listCachesCommand,
					},
					{
						Name:   "drop",
						Usage:  "Delete a cache so the next reconciliation rebuilds it",
						Action: dropCacheCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "dataset",
								Aliases:  []string{"d"},
								Usage:    "Dataset owning the cache",
								Required: true,
							},
							&cli.StringFlag{
								Name:    "partition",
								Aliases: []string{"p"},
								Usage:   "Partition value (whole-dataset cache when omitted)",
							},
						},
					},
				},
			},
			{
				Name:   "common-words",
				Usage:  "List the most common short words in a dataset's names",
				Action: commonWordsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dataset",
						Aliases:  []string{"d"},
						Usage:    "Dataset to inspect",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of words to list",
						Value: 20,
					},
				},
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.File, error) {
	path := c.String("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// selectDatasets narrows cfg to the named datasets.
func selectDatasets(cfg *config.File, names []string) error {
	if len(names) == 0 {
		return nil
	}
	selected := make([]config.Dataset, 0, len(names))
	for _, name := range names {
		d, ok := cfg.Dataset(name)
		if !ok {
			return fmt.Errorf("%w: %q", refmatch.ErrUnknownDataset, name)
		}
		selected = append(selected, d)
	}
	cfg.Datasets = selected
	return nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	addr := cfg.HTTP.Addr
	if a := c.String("addr"); a != "" {
		addr = a
	}

	svc, err := refmatch.NewService(ctx, cfg, refmatch.WithProgress(os.Stderr))
	if err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Close()

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(svc, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr, "datasets", svc.Datasets())
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Duration("shutdown-timeout"))
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	if hits, misses, ok := svc.QueryCacheStats(); ok {
		slog.Info("query vector cache", "hits", hits, "misses", misses)
	}
	return err
}

// parseFilters turns column=value pairs into a filter map.
func parseFilters(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filters := make(map[string]string, len(pairs))
	for _, p := range pairs {
		column, value, ok := strings.Cut(p, "=")
		column = strings.TrimSpace(column)
		if !ok || column == "" {
			return nil, fmt.Errorf("invalid filter %q: expected column=value", p)
		}
		filters[column] = strings.TrimSpace(value)
	}
	return filters, nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("query is required")
	}
	filters, err := parseFilters(c.StringSlice("filter"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	dataset := c.String("dataset")
	if err := selectDatasets(cfg, []string{dataset}); err != nil {
		return err
	}

	svc, err := refmatch.NewService(ctx, cfg, refmatch.WithProgress(os.Stderr))
	if err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Close()

	matches, err := svc.Search(ctx, dataset, search.Request{
		Query:   query,
		Filters: filters,
		Subject: c.Bool("subject"),
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	for _, m := range matches {
		if m.Address != "" {
			fmt.Fprintf(w, "%.4f\t%s\t%s\n", m.Score, m.Name, m.Address)
		} else {
			fmt.Fprintf(w, "%.4f\t%s\n", m.Score, m.Name)
		}
	}
	return w.Flush()
}

func reconcileCommand(c *cli.Context) error {
	ctx := context.Background()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := selectDatasets(cfg, c.StringSlice("dataset")); err != nil {
		return err
	}

	svc, err := refmatch.NewService(ctx, cfg, refmatch.WithProgress(os.Stderr))
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	defer svc.Close()

	return printReports(c.App.Writer, svc)
}

func printReports(out io.Writer, svc *refmatch.Service) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CACHE\tACTION\tKEYS\tADDED\tDELETED\tSTALE\tDURATION")
	for _, name := range svc.Datasets() {
		engine, _ := svc.Engine(name)
		for _, r := range engine.Reports() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
				r.Cache, r.Action, r.Keys, r.Added, r.Deleted, r.Stale, r.Duration.Round(time.Millisecond))
		}
	}
	return w.Flush()
}

func listCachesCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	caches, err := refmatch.OpenCaches(cfg)
	if err != nil {
		return err
	}
	defer caches.Close()

	infos, err := caches.List(context.Background())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODEL\tDIM\tENTRIES\tUPDATED")
	for _, info := range infos {
		if info.Err != nil {
			fmt.Fprintf(w, "%s\terror: %v\t\t\t\n", info.Name, info.Err)
			continue
		}
		m := info.Manifest
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			info.Name, m.Model, m.Dimension, m.Count, m.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func dropCacheCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	caches, err := refmatch.OpenCaches(cfg)
	if err != nil {
		return err
	}
	defer caches.Close()

	name, err := caches.Drop(context.Background(), c.String("dataset"), c.String("partition"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "dropped %s\n", name)
	return nil
}

func commonWordsCommand(c *cli.Context) error {
	ctx := context.Background()

	limit := c.Int("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	d, ok := cfg.Dataset(c.String("dataset"))
	if !ok {
		return fmt.Errorf("%w: %q", refmatch.ErrUnknownDataset, c.String("dataset"))
	}

	src, err := source.Open(d.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	schema := d.Schema()
	rows, err := src.Rows(ctx, schema.WithDefaults().Columns)
	if err != nil {
		return err
	}
	table, err := records.Project(schema, rows, slog.Default())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	for _, wc := range records.CommonWords(table, limit) {
		fmt.Fprintf(w, "%s\t%d\n", wc.Word, wc.Count)
	}
	return w.Flush()
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
