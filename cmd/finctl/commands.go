package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"finanzas/internal/amqp"
	"finanzas/internal/cli"
	"finanzas/internal/core"
	applog "finanzas/internal/log"
	"finanzas/internal/services"
	"finanzas/internal/sheets"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "finctl",
		Short:         "Personal finance ledger command-line interface",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.AddCommand(newSyncCmd(), newIngestCmd(), newImportResumesCmd(), newReportCmd(), newAvailableCmd())
	return root
}

// withRuntime loads the configuration and runs fn against a fresh runtime.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *cli.Runtime) error) error {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg).WithComponent(applog.ComponentCLI)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := cli.NewRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSyncCmd() *cobra.Command {
	var async bool
	cmd := &cobra.Command{
		Use:   "sync [label]",
		Short: "Reconcile the ledger against one feed, or all of them",
		Long: "Reconcile the ledger against a spreadsheet feed. Labels: " +
			strings.Join(feedNames(), ", ") + ". Without a label every feed runs.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label := amqp.LabelAll
			if len(args) == 1 {
				label = args[0]
			}
			if label != amqp.LabelAll {
				if _, err := sheets.ParseFeed(label); err != nil {
					return err
				}
			}
			if async {
				return publishSync(cmd, label)
			}

			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				var results []services.SyncResult
				if label == amqp.LabelAll {
					results = rt.Sync.RunAll(ctx)
				} else {
					feed, _ := sheets.ParseFeed(label)
					results = []services.SyncResult{rt.Sync.Run(ctx, feed)}
				}
				if err := printJSON(cmd, results); err != nil {
					return err
				}
				for _, res := range results {
					if res.Failed() {
						return fmt.Errorf("sync %s failed: %s", res.Label, res.Error)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "queue the request for the worker instead of running it here")
	return cmd
}

func publishSync(cmd *cobra.Command, label string) error {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	if cfg.AMQPURL == "" {
		return fmt.Errorf("--async requires AMQP_URL")
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cli.SetupLogger(cfg))
	if err != nil {
		return err
	}
	defer client.Close()

	msg, err := client.PublishSyncRequest(cmd.Context(), label)
	if err != nil {
		return err
	}
	return printJSON(cmd, msg)
}

func feedNames() []string {
	names := make([]string, 0, len(sheets.Feeds))
	for _, f := range sheets.Feeds {
		names = append(names, f.String())
	}
	return names
}

func newIngestCmd() *cobra.Command {
	var cardType, period string
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a statement from a parsed JSON payload or a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p core.Period
			if period != "" {
				parsed, err := core.ParseStatementPeriod(period)
				if err != nil {
					return err
				}
				p = parsed
			}

			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				payload, err := readPayload(ctx, rt, args[0])
				if err != nil {
					return err
				}
				stmt, err := rt.Statements.Ingest(ctx, payload, cardType, p)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]string{
					"document_id": stmt.DocumentID,
					"card_type":   stmt.CardType,
					"period":      stmt.Period.String(),
				})
			})
		},
	}
	cmd.Flags().StringVar(&cardType, "card-type", "", "card network of the statement (visa, amex, ...)")
	cmd.Flags().StringVar(&period, "period", "", "statement period as MM-YYYY")
	_ = cmd.MarkFlagRequired("card-type")
	return cmd
}

// readPayload returns the JSON payload in path, sending PDFs through the
// parsing service first.
func readPayload(ctx context.Context, rt *cli.Runtime, path string) ([]byte, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return os.ReadFile(path)
	}
	if rt.Config.PDFParserURL == "" {
		return nil, services.ErrParserNotConfigured
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return rt.Parser().Parse(ctx, filepath.Base(path), f)
}

func newImportResumesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-resumes",
		Short: "Import every statement PDF under RESUMES_DIR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				if rt.Resumes == nil {
					return services.ErrParserNotConfigured
				}
				report, err := rt.Resumes.Import(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			})
		},
	}
}

func newReportCmd() *cobra.Command {
	var cardType, holder string
	cmd := &cobra.Command{
		Use:       "report <expenses|incomes|statements> <year> <month>",
		Short:     "Print a monthly report",
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{"expenses", "incomes", "statements"},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := core.ParsePeriod(args[1], args[2])
			if err != nil {
				return err
			}
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				var report any
				switch args[0] {
				case "expenses":
					report, err = rt.Ledger.ExpenseReport(ctx, p)
				case "incomes":
					report, err = rt.Ledger.IncomeReport(ctx, p)
				case "statements":
					report, err = rt.Statements.Summarize(ctx, p, cardType, holder)
				default:
					return fmt.Errorf("unknown report %q: want expenses, incomes or statements", args[0])
				}
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			})
		},
	}
	cmd.Flags().StringVar(&cardType, "card-type", "", "only statements of this card network")
	cmd.Flags().StringVar(&holder, "holder", "", "only this statement holder")
	return cmd
}

func newAvailableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "available <year> <month>",
		Short: "List the card networks and holders with statements in a month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := core.ParsePeriod(args[0], args[1])
			if err != nil {
				return err
			}
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				available, err := rt.Statements.ListAvailable(ctx, p)
				if err != nil {
					return err
				}
				return printJSON(cmd, available)
			})
		},
	}
}
