package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"peerscan/adapters/db"
	"peerscan/adapters/excel"
	"peerscan/adapters/stats/tables"
	"peerscan/app"
	"peerscan/domain/anomaly"
	"peerscan/internal"
	"peerscan/internal/config"
	"peerscan/internal/migration"
	"peerscan/internal/testkit"
	"peerscan/internal/worker"
	"peerscan/ports"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "peerscan",
		Short: "Unusual case detection over tabular data",
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newGenerateCmd(),
		newMigrateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type analyzeFlags struct {
	file        string
	sheet       string
	vars        []string
	id          string
	optionsFile string
	out         string
	asJSON      bool
}

func newAnalyzeCmd() *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Find unusual cases in a spreadsheet",
		Long: `Read a dataset (xlsx or csv, header row first), group the cases into peer
groups on the chosen variables and report the cases that deviate most from their peers.

When DATABASE_URL is set the run is stored in the run history.

Example: peerscan analyze --file data.xlsx --vars income,age --id customer --out report.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().StringVar(&f.file, "file", "", "Dataset file (.xlsx, .xlsm or .csv)")
	cmd.Flags().StringVar(&f.sheet, "sheet", excel.DefaultSheet, "Worksheet to read")
	cmd.Flags().StringSliceVar(&f.vars, "vars", nil, "Comma separated analysis variable names")
	cmd.Flags().StringVar(&f.id, "id", "", "Case identifier column")
	cmd.Flags().StringVar(&f.optionsFile, "options", "", "YAML options preset")
	cmd.Flags().StringVar(&f.out, "out", "", "Write the report tables to this xlsx file")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the full response message as JSON")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("vars")

	return cmd
}

func runAnalyze(ctx context.Context, stdout io.Writer, f analyzeFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	req, err := buildRequest(ctx, f, logger)
	if err != nil {
		return err
	}

	var runs ports.RunRepository
	if cfg.Database.Enabled() {
		conn, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer conn.Close()
		runs = db.NewRunRepository(conn)
	}

	svc := app.NewUnusualCaseService(worker.NewDefault(cfg.Worker.MaxRequestRows, logger), 1, runs, excel.NewExporter(), logger)
	outcome := svc.Analyze(ctx, req)

	if f.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcome.Response); err != nil {
			return err
		}
	}
	if !outcome.Response.OK() {
		return fmt.Errorf("analysis failed: %s", outcome.Response.Error)
	}
	if !f.asJSON {
		fmt.Fprint(stdout, tables.Markdown(outcome.Response.Result))
	}
	if outcome.RunID != "" {
		logger.Info("stored run %s", outcome.RunID)
	}

	if f.out != "" {
		if err := writeFile(f.out, func(w io.Writer) error {
			return excel.NewExporter().WriteReport(w, outcome.Response.Result.Tables)
		}); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		logger.Info("report written to %s", f.out)
	}
	return nil
}

// buildRequest reads the dataset and resolves column names into a request.
func buildRequest(ctx context.Context, f analyzeFlags, logger *internal.Logger) (*anomaly.Request, error) {
	opts := anomaly.DefaultOptions()
	if f.optionsFile != "" {
		var err error
		if opts, err = config.LoadOptionsFile(f.optionsFile); err != nil {
			return nil, err
		}
	}

	dr := excel.NewDataReader(logger)
	if f.sheet != "" {
		dr = dr.WithSheet(f.sheet)
	}
	var reader ports.DatasetReader = dr
	ds, err := reader.ReadDataset(ctx, f.file)
	if err != nil {
		return nil, err
	}

	vars, err := excel.ResolveVariables(ds.Headers, f.vars)
	if err != nil {
		return nil, err
	}
	req := &anomaly.Request{
		Data:              ds.Rows,
		AnalysisVariables: vars,
		Options:           opts,
	}
	if f.id != "" {
		id, err := excel.ResolveVariables(ds.Headers, []string{f.id})
		if err != nil {
			return nil, err
		}
		req.CaseIdentifierVariable = &id[0]
	}
	return req, nil
}

func newGenerateCmd() *cobra.Command {
	cfg := testkit.DefaultCaseConfig()
	var out string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic dataset with planted unusual cases",
		Long: `Generate peer-grouped numeric data with a known set of outliers.
The planted rows are printed so results can be checked by eye.

Example: peerscan generate --out data.xlsx --rows 200 --vars 3 --outliers 5 --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.OutOrStdout(), cfg, out)
		},
	}

	cmd.Flags().StringVar(&out, "out", "data.xlsx", "Output file (.xlsx or .csv)")
	cmd.Flags().IntVar(&cfg.Rows, "rows", cfg.Rows, "Number of cases")
	cmd.Flags().IntVar(&cfg.Variables, "vars", cfg.Variables, "Number of numeric variables")
	cmd.Flags().IntVar(&cfg.PeerGroups, "groups", cfg.PeerGroups, "Number of generating groups")
	cmd.Flags().IntVar(&cfg.Outliers, "outliers", cfg.Outliers, "Number of planted outliers")
	cmd.Flags().Float64Var(&cfg.MissingRate, "missing", cfg.MissingRate, "Share of blank cells")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")

	return cmd
}

func runGenerate(stdout io.Writer, cfg testkit.CaseGeneratorConfig, out string) error {
	ds, err := testkit.NewCaseDataGenerator(cfg).Generate()
	if err != nil {
		return err
	}

	write := func(w io.Writer) error { return excel.WriteDataset(w, ds.Headers, ds.Rows) }
	if strings.EqualFold(filepath.Ext(out), ".csv") {
		write = func(w io.Writer) error { return writeCSV(w, ds.Headers, ds.Rows) }
	}
	if err := writeFile(out, write); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}

	planted := make([]string, len(ds.OutlierRows))
	for i, r := range ds.OutlierRows {
		planted[i] = ds.Rows[r].At(0).String()
	}
	fmt.Fprintf(stdout, "wrote %d cases to %s\nplanted outliers: %s\n", len(ds.Rows), out, strings.Join(planted, ", "))
	return nil
}

func writeCSV(w io.Writer, headers []string, rows []anomaly.RawRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	record := make([]string, len(headers))
	for _, row := range rows {
		for j := range record {
			record[j] = row.At(j).String()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the run history schema",
		Long: `Apply the schema for stored runs. Reads DATABASE_URL and DB_DRIVER (postgres or sqlite).

Example: DB_DRIVER=sqlite DATABASE_URL=runs.db peerscan migrate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return fmt.Errorf("DATABASE_URL is not set")
			}
			conn, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema %s applied\n", migration.NewRunner().Version())
			return nil
		},
	}
}

// openDatabase connects and applies the schema.
func openDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	conn, err := db.Connect(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := migration.NewRunner().Run(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func newLogger(cfg *config.Config) *internal.Logger {
	level, _ := internal.ParseLogLevel(cfg.LogLevel)
	return internal.NewLogger(level)
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
