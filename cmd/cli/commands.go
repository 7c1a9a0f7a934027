package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/finance-assistant/internal/categorize"
	"github.com/dvloznov/finance-assistant/internal/chat"
	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/csvimport"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/gcsuploader"
	"github.com/dvloznov/finance-assistant/internal/llm"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/report"
	"github.com/dvloznov/finance-assistant/internal/store"
)

type globalOptions struct {
	configPath string
	logLevel   string
}

// env is what every command needs once flags are parsed.
type env struct {
	cfg *config.Config
	log zerolog.Logger
}

func (o *globalOptions) load() (*env, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: logger.NewWithLevel(cfg.LogLevel)}, nil
}

// readExport reads a local file or a gs:// object.
func (e *env) readExport(ctx context.Context, source string) ([]domain.Transaction, error) {
	var data []byte
	if gcsuploader.IsGCSURI(source) {
		svc, err := gcsuploader.NewGCSStorageService(ctx, e.cfg.GCSCredentialsFile)
		if err != nil {
			return nil, err
		}
		defer svc.Close()
		if data, err = svc.FetchFromGCS(ctx, source); err != nil {
			return nil, err
		}
	} else {
		var err error
		if data, err = os.ReadFile(source); err != nil {
			return nil, fmt.Errorf("reading %s: %w", source, err)
		}
	}

	parser := csvimport.NewParser(csvimport.Profile{
		HeaderAnchor: e.cfg.CSV.HeaderAnchor,
		HeaderMarker: e.cfg.CSV.HeaderMarker,
		Delimiter:    e.cfg.CSV.DelimiterRune(),
	})
	txs, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", source, err)
	}
	e.log.Info().
		Str("file", sourceName(source)).
		Str("format", parser.Format()).
		Int("transactions", len(txs)).
		Msg("export loaded")
	return txs, nil
}

// sourceName is the file name of a local path or gs:// URI.
func sourceName(source string) string {
	if gcsuploader.IsGCSURI(source) {
		return gcsuploader.ExtractFilenameFromGCSURI(source)
	}
	return filepath.Base(source)
}

func (e *env) completer(ctx context.Context) (llm.Completer, error) {
	if e.cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	return llm.NewGeminiCompleter(ctx, e.cfg.GeminiAPIKey, e.cfg.Model)
}

func newParseCommand(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "parse <file|gs://bucket/object>",
		Short: "Parse a bank export and print its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			txs, err := e.readExport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printTransactions(cmd.OutOrStdout(), txs, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newAssignCommand(opts *globalOptions) *cobra.Command {
	var (
		limit  int
		all    bool
		output string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "assign <file|gs://bucket/object>",
		Short: "Assign categories to the transactions of an export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			ctx := logger.WithContext(cmd.Context(), e.log)

			txs, err := e.readExport(ctx, args[0])
			if err != nil {
				return err
			}
			completer, err := e.completer(ctx)
			if err != nil {
				return err
			}

			s := store.New()
			s.Replace(txs)
			client := categorize.NewClient(completer,
				categorize.WithPacer(categorize.NewPacer(e.cfg.BatchDelay, e.cfg.BatchRatePerMinute)),
				categorize.WithTimeout(e.cfg.CompletionTimeout),
				categorize.WithLogger(e.log),
			)
			if limit < 1 {
				limit = e.cfg.BatchLimit
			}

			if err := runBatches(ctx, client, s, limit, all, e.log); err != nil {
				return err
			}

			if output != "" {
				if err := writeReport(output, s.All()); err != nil {
					return err
				}
				e.log.Info().Str("path", output).Msg("report written")
			}
			return printTransactions(cmd.OutOrStdout(), s.All(), asJSON)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "transactions per batch (default from config)")
	cmd.Flags().BoolVar(&all, "all", false, "keep running batches until nothing more can be assigned")
	cmd.Flags().StringVarP(&output, "output", "o", "", "also write an XLSX report to this path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// runBatches runs one batch, or with all set, batches until none are left or
// a batch leaves the unassigned count unchanged.
func runBatches(ctx context.Context, client *categorize.Client, s *store.Store, limit int, all bool, log zerolog.Logger) error {
	for {
		before := len(s.Unassigned(0))
		result, err := client.AssignAll(ctx, s, limit)
		log.Info().
			Int("attempted", result.Attempted).
			Int("assigned", result.Assigned).
			Int("failed", len(result.Failed)).
			Dur("duration", result.Duration).
			Msg("batch finished")
		if err != nil {
			return err
		}
		after := len(s.Unassigned(0))
		if !all || result.Assigned == 0 || after == 0 || after >= before {
			return nil
		}
	}
}

func newExportCommand(opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <file|gs://bucket/object>",
		Short: "Write an export as an XLSX report without assigning categories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			txs, err := e.readExport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "" {
				name := sourceName(args[0])
				output = strings.TrimSuffix(name, filepath.Ext(name)) + ".xlsx"
			}
			if err := writeReport(output, txs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d transactions to %s\n", len(txs), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default <input>.xlsx)")
	return cmd
}

func newChatCommand(opts *globalOptions) *cobra.Command {
	var noTransactions bool

	cmd := &cobra.Command{
		Use:   "chat <file|gs://bucket/object> <question>",
		Short: "Ask a question about the transactions of an export",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			txs, err := e.readExport(ctx, args[0])
			if err != nil {
				return err
			}
			completer, err := e.completer(ctx)
			if err != nil {
				return err
			}

			s := store.New()
			s.Replace(txs)
			svc := chat.NewService(llm.WithTimeout(completer, e.cfg.CompletionTimeout), s, e.log)

			question := strings.Join(args[1:], " ")
			answer, err := svc.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: question}}, !noTransactions)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noTransactions, "no-transactions", false, "do not send the transactions as context")
	return cmd
}

func newArchiveCommand(opts *globalOptions) *cobra.Command {
	var bucket string

	cmd := &cobra.Command{
		Use:   "archive <file>",
		Short: "Copy a local export to the GCS archive bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			if bucket == "" {
				bucket = e.cfg.ArchiveBucket
			}
			if bucket == "" {
				return fmt.Errorf("no bucket: pass --bucket or set GCS_BUCKET")
			}
			ctx := cmd.Context()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			svc, err := gcsuploader.NewGCSStorageService(ctx, e.cfg.GCSCredentialsFile)
			if err != nil {
				return err
			}
			defer svc.Close()

			e.log.Info().Str("bucket", bucket).Str("file", args[0]).Msg("Uploading file to GCS")
			uri, err := gcsuploader.NewBucketArchiver(svc, bucket).Archive(ctx, filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s\n", args[0], uri)
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "GCS bucket (overrides GCS_BUCKET)")
	return cmd
}

func writeReport(path string, txs []domain.Transaction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := report.Write(f, txs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printTransactions(w io.Writer, txs []domain.Transaction, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if txs == nil {
			txs = []domain.Transaction{}
		}
		return enc.Encode(txs)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDESCRIPTION\tAMOUNT\tSOURCE CATEGORY\tASSIGNED")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", tx.Date, tx.Description, tx.Amount, tx.SourceCategory, tx.AssignedCategory)
	}
	return tw.Flush()
}
