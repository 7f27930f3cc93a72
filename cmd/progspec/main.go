package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/progspec"
	"github.com/brunobiangulo/progspec/export"
	"github.com/brunobiangulo/progspec/parser"
)

var version = "0.1.0"

var cfg progspec.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "progspec",
		Short: "Programme Specification extractor",
		Long: `progspec reads Programme Specification documents and extracts the
programme, department, awarded courses and the modules offered in each
year of study.

Records can be printed as JSON, exported as a workbook, or loaded into
the SQLite module catalog served by progspec-server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = progspec.LoadConfig(configPath)
			if err != nil {
				return err
			}
			slog.SetDefault(progspec.NewLogger(os.Stderr, cfg))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (YAML)")

	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(modulesCmd())
	return rootCmd
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Extract a record and print it as JSON",
		Long: `Extract the record from a Programme Specification and print it as JSON.
Nothing is written to the catalog.

Example:
  progspec parse G400-MEng-Computing-2024-25.pdf
  progspec parse G400-MEng-Computing-2024-25.pdf --report`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			withReport, _ := cmd.Flags().GetBool("report")

			rec, rep, err := parser.New(slog.Default()).Parse(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if withReport {
				return printJSON(cmd, map[string]any{"record": rec, "report": rep})
			}
			return printJSON(cmd, rec)
		},
	}
	cmd.Flags().Bool("report", false, "Include the parse report (rejected rows, orphans, level conflicts)")
	return cmd
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Load documents into the module catalog",
		Long: `Parse, validate and load one or more Programme Specifications into the
catalog. Documents already imported with identical content are skipped
unless --force is given.

Example:
  progspec ingest specs/*.pdf
  progspec ingest --force G400-MEng-Computing-2024-25.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

			engine, err := progspec.New(cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			var opts []progspec.IngestOption
			if force {
				opts = append(opts, progspec.WithForceReparse())
			}

			results, err := engine.IngestAll(cmd.Context(), args, opts...)
			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range results {
				switch {
				case r.Err != nil:
					failed++
					fmt.Fprintf(out, "FAIL  %s: %v\n", r.Path, r.Err)
				case r.Skipped:
					fmt.Fprintf(out, "SKIP  %s (unchanged, import %s)\n", r.Filename, r.ImportID)
				default:
					fmt.Fprintf(out, "OK    %s: %d courses, %d modules (import %s)\n",
						r.Filename, r.Load.Courses, r.Load.Modules, r.ImportID)
				}
			}
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Re-parse documents even if already imported")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Export a record as an Excel workbook",
		Long: `Extract the record from a Programme Specification and write it as an
.xlsx workbook with a Programme sheet and a Modules sheet. A bare --out
name is placed in the configured export directory.

Example:
  progspec export G400-MEng-Computing-2024-25.pdf --out g400.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				base := filepath.Base(args[0])
				out = strings.TrimSuffix(base, filepath.Ext(base)) + ".xlsx"
			}
			if filepath.Base(out) == out {
				out = filepath.Join(cfg.ExportDir, out)
			}

			rec, _, err := parser.New(slog.Default()).Parse(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
			if err := export.WriteXLSX(rec, f); err != nil {
				f.Close()
				os.Remove(out)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().String("out", "", "Output workbook path (default: <input name>.xlsx)")
	return cmd
}

func modulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modules [TERM|CODE]",
		Short: "Search the module catalog",
		Long: `Search catalog modules by code or name. With an exact module code the
module is printed with every academic year it has been offered in.
Without an argument every module is listed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := "*"
			if len(args) > 0 {
				term = args[0]
			}

			engine, err := progspec.New(cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			if term != "*" {
				if info, err := engine.Module(cmd.Context(), term); err == nil {
					return printJSON(cmd, info)
				}
			}
			mods, err := engine.SearchModules(cmd.Context(), term)
			if err != nil {
				return err
			}
			for _, m := range mods {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", m.Code, m.Name)
			}
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
