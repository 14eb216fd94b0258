// Command grid answers F1 statistics questions from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	app "github.com/xbarat/grounding-llm-prototypes-sub000/internal/app"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/config"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/replay"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/logger"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "grid",
		Short:         "grid - F1 statistics from natural-language questions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWithWriter(cmd.ErrOrStderr(), false); err != nil {
				return errors.Wrap(err, "initialize logger")
			}
			level, _ := cmd.Flags().GetString("log-level")
			return logger.SetLevelString(level)
		},
	}
	root.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
	root.AddCommand(newQueryCmd(), newReplayCmd())
	return root
}

func newQueryCmd() *cobra.Command {
	var (
		noFastPath bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   `query "<question>"`,
		Short: "Resolve a question and print the resulting table",
		Example: `  grid query "How did Verstappen perform in 2023?"
  grid query "Compare Ferrari and McLaren points in 2024" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			svc := app.New(
				app.WithConfig(*cfg),
				app.WithLogger(logger.Get()),
				app.WithMetrics(metrics.NewManager()),
			)
			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Stop()

			res, err := svc.Query(ctx, strings.Join(args, " "), app.IncludeFastPath(!noFastPath))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&noFastPath, "no-fast-path", false, "skip the template fast path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func newReplayCmd() *cobra.Command {
	var (
		addr       string
		file       string
		workers    int
		timeout    time.Duration
		noFastPath bool
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a file of questions against a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return errors.Wrap(err, "open queries")
				}
				defer func() { _ = f.Close() }()
				in = f
			}
			queries, err := replay.ReadQueries(in)
			if err != nil {
				return err
			}
			rep, err := replay.Run(cmd.Context(), replay.Config{
				BaseURL:         addr,
				Queries:         queries,
				Workers:         workers,
				Timeout:         timeout,
				IncludeFastPath: !noFastPath,
			}, logger.Get())
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:9080", "server base URL")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "file with one question per line")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "concurrent requests")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "per-request timeout")
	cmd.Flags().BoolVar(&noFastPath, "no-fast-path", false, "skip the template fast path")
	return cmd
}

func printResult(w io.Writer, res app.Result) error {
	p := res.Provenance
	fmt.Fprintf(w, "endpoint: %s  source: %s  confidence: %.2f  cache: %t\n", p.Endpoint, p.Source, p.Confidence, p.CacheHit)
	if !res.Validation.OK {
		fmt.Fprintf(w, "missing columns: %s\n", strings.Join(res.Validation.Missing, ", "))
	}
	if res.Table.Len() == 0 {
		fmt.Fprintln(w, "(no rows)")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(res.Table.Columns, "\t"))
	for _, row := range res.Table.Rows {
		cells := make([]string, len(res.Table.Columns))
		for i, c := range res.Table.Columns {
			if v := row[c]; v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func printReport(w io.Writer, rep replay.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "status\tlatency\trows\tsource\tquery")
	for _, o := range rep.Outcomes {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", o.Status, o.Latency.Round(time.Millisecond), o.Rows, o.Source, o.Query)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d queries in %s  p50=%s  p95=%s  statuses=%v\n",
		len(rep.Outcomes), rep.Duration.Round(time.Millisecond),
		rep.P50.Round(time.Millisecond), rep.P95.Round(time.Millisecond), rep.ByStatus)
	return nil
}
