// Package main contains the cli implementation of the tool. It uses cobra
// for command parsing, matching the CLI-first ergonomics the rest of this
// codebase's sibling tools use.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dbxmigrate/internal/apply"
	"dbxmigrate/internal/approve"
	"dbxmigrate/internal/artifact"
	"dbxmigrate/internal/config"
	"dbxmigrate/internal/connector"
	_ "dbxmigrate/internal/connector/mssql"
	_ "dbxmigrate/internal/connector/mysql"
	_ "dbxmigrate/internal/connector/postgres"
	"dbxmigrate/internal/core"
	"dbxmigrate/internal/extract"
	"dbxmigrate/internal/llm"
	"dbxmigrate/internal/llm/anthropic"
	"dbxmigrate/internal/llm/rulebased"
	"dbxmigrate/internal/logging"
	"dbxmigrate/internal/migrate"
	"dbxmigrate/internal/propose"
	"dbxmigrate/internal/runregistry"
	"dbxmigrate/internal/schemagen"
	"dbxmigrate/internal/validate"
)

type rootFlags struct {
	artifactDir string
	runID       string
	debug       bool
}

func main() {
	rf := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:   "dbxmigrate",
		Short: "PostgreSQL/MSSQL to MySQL schema and data migration tool",
	}
	rootCmd.PersistentFlags().StringVar(&rf.artifactDir, "artifact-dir", "./dbxmigrate-artifacts", "Root directory for run artifacts")
	rootCmd.PersistentFlags().StringVar(&rf.runID, "run-id", "", "Run ID to operate on (generated if omitted for extract)")
	rootCmd.PersistentFlags().BoolVar(&rf.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		extractCmd(rf),
		proposeCmd(rf),
		validateMappingCmd(rf),
		applySchemaCmd(rf),
		migrateCmd(rf),
		validateCmd(rf),
		showCheckpointsCmd(rf),
		listEnginesCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a stage error to its process exit code, falling back to
// 1 for anything that isn't one of the taxonomy's own error types.
func exitCodeFor(err error) int {
	var coder core.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func registryFor(rf *rootFlags) (*runregistry.Registry, error) {
	return runregistry.New(rf.artifactDir)
}

func resolveRunID(rf *rootFlags) string {
	if rf.runID != "" {
		return rf.runID
	}
	return runregistry.NewRunID(time.Now())
}

// --- extract ---

func extractCmd(rf *rootFlags) *cobra.Command {
	var dialect string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Introspect the source database and write a schema snapshot",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runExtract(rf, dialect)
		},
	}
	cmd.Flags().StringVar(&dialect, "source-dialect", "postgresql", "Source dialect: postgresql or mssql")
	return cmd
}

func runExtract(rf *rootFlags, dialectName string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := registryFor(rf)
	if err != nil {
		return err
	}
	runID := resolveRunID(rf)
	logger := logging.New(logging.Options{Debug: rf.debug})

	d := core.Dialect(dialectName)
	if !core.ValidDialect(string(d)) {
		return &core.ConfigError{Err: fmt.Errorf("unsupported source dialect %q", dialectName)}
	}
	conn, err := connector.New(d)
	if err != nil {
		return &core.ConnectError{Engine: string(d), Err: err}
	}
	ctx := context.Background()
	if err := conn.Connect(ctx, cfg.Source.DSN); err != nil {
		return &core.ConnectError{Engine: string(d), Err: err}
	}
	defer conn.Close()

	ex := extract.New(conn, logger)
	art, err := ex.Run(ctx, runID, d, reg.Dir("schemas", runID))
	if err != nil {
		return err
	}
	fmt.Printf("run %s: extracted %d tables (%d errors)\n", runID, len(art.Database.Tables), len(art.Errors))
	return reg.SaveState(&core.RunContext{RunID: runID, StartedAt: art.ExtractedAt, SourceKind: d, TargetKind: core.DialectMySQL, ArtifactDir: rf.artifactDir})
}

// --- propose ---

func proposeCmd(rf *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Generate draft column/table mappings for every extracted table",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runPropose(rf)
		},
	}
	return cmd
}

func runPropose(rf *rootFlags) error {
	if rf.runID == "" {
		return &core.ConfigError{Err: fmt.Errorf("--run-id is required")}
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := registryFor(rf)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Options{Debug: rf.debug})

	var art core.SchemaArtifact
	if err := artifact.ReadJSON(filepath.Join(reg.Dir("schemas", rf.runID), "_artifact.json"), &art); err != nil {
		return &core.SchemaError{Err: fmt.Errorf("load schema artifact: %w", err)}
	}

	client, fallback := buildLLMClients(cfg, logger)
	p := propose.New(client, fallback, logger)
	store := approve.New(reg.Dir("mappings", rf.runID))

	ctx := context.Background()
	var drafted int
	for _, t := range art.Database.Tables {
		tm, err := p.Propose(ctx, t)
		if err != nil {
			return err
		}
		if err := store.SaveDraft(tm); err != nil {
			return err
		}
		drafted++
	}
	fmt.Printf("drafted mappings for %d tables\n", drafted)
	return nil
}

func buildLLMClients(cfg *config.Config, logger *zap.Logger) (llm.Client, llm.Client) {
	fallback := rulebased.New()
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.APIKey == "" {
		return fallback, fallback
	}
	client, err := anthropic.New(cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		logger.Warn("anthropic client unavailable, using rule-based proposer only", zap.Error(err))
		return fallback, fallback
	}
	return client, fallback
}

// --- validate-mapping ---

func validateMappingCmd(rf *rootFlags) *cobra.Command {
	var table, approvedBy string
	var approveFlag bool
	cmd := &cobra.Command{
		Use:   "validate-mapping",
		Short: "Validate a draft mapping and optionally promote it to approved",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runValidateMapping(rf, table, approvedBy, approveFlag)
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "Source table name (required)")
	cmd.Flags().StringVar(&approvedBy, "approved-by", "", "Approver identity, required with --approve")
	cmd.Flags().BoolVar(&approveFlag, "approve", false, "Promote the draft to approved after validation")
	return cmd
}

func runValidateMapping(rf *rootFlags, table, approvedBy string, doApprove bool) error {
	if rf.runID == "" || table == "" {
		return &core.ConfigError{Err: fmt.Errorf("--run-id and --table are required")}
	}
	reg, err := registryFor(rf)
	if err != nil {
		return err
	}
	store := approve.New(reg.Dir("mappings", rf.runID))
	tm, err := store.LoadDraft(table)
	if err != nil {
		return err
	}
	if err := approve.Validate(tm); err != nil {
		return err
	}
	fmt.Printf("mapping for %s is structurally valid (%d columns)\n", table, len(tm.Columns))
	if !doApprove {
		return nil
	}
	if approvedBy == "" {
		return &core.ConfigError{Err: fmt.Errorf("--approved-by is required with --approve")}
	}
	if _, err := approve.Approve(store, table, approvedBy); err != nil {
		return err
	}
	fmt.Printf("approved %s\n", table)
	return nil
}

// --- apply-schema ---

func applySchemaCmd(rf *rootFlags) *cobra.Command {
	var unsafe, dryRun bool
	cmd := &cobra.Command{
		Use:   "apply-schema",
		Short: "Generate and apply CREATE TABLE / FOREIGN KEY DDL for every approved mapping",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runApplySchema(rf, unsafe, dryRun)
		},
	}
	cmd.Flags().BoolVar(&unsafe, "unsafe", false, "Allow destructive statements flagged by preflight")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "Print statements and preflight results without executing")
	return cmd
}

func runApplySchema(rf *rootFlags, unsafe, dryRun bool) error {
	if rf.runID == "" {
		return &core.ConfigError{Err: fmt.Errorf("--run-id is required")}
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := registryFor(rf)
	if err != nil {
		return err
	}

	var art core.SchemaArtifact
	if err := artifact.ReadJSON(filepath.Join(reg.Dir("schemas", rf.runID), "_artifact.json"), &art); err != nil {
		return &core.SchemaError{Err: fmt.Errorf("load schema artifact: %w", err)}
	}
	sourceTables := make(map[string]*core.Table, len(art.Database.Tables))
	for _, t := range art.Database.Tables {
		sourceTables[t.Name] = t
	}

	store := approve.New(reg.Dir("mappings", rf.runID))
	var mappings []*core.TableMapping
	for _, t := range art.Database.Tables {
		tm, err := store.LoadApproved(t.Name)
		if err != nil {
			continue
		}
		mappings = append(mappings, tm)
	}
	if len(mappings) == 0 {
		return &core.MappingError{Err: fmt.Errorf("no approved mappings found for run %s", rf.runID)}
	}

	gen := schemagen.New()
	result, err := gen.Generate(sourceTables, mappings)
	if err != nil {
		return err
	}

	statements := append(append([]string{}, result.CreateStatements...), result.ForeignKeyStatements...)
	for _, w := range result.Preflight.Warnings {
		fmt.Printf("[%s] %s\n", w.Level, w.Message)
	}
	if !unsafe && apply.HasDestructiveOperations(result.Preflight) {
		return &core.DDLError{Err: fmt.Errorf("destructive statements present; pass --unsafe to proceed")}
	}

	applier := apply.NewApplier(apply.Options{DSN: cfg.Target.DSN, DryRun: dryRun, Transaction: false, Unsafe: unsafe, Out: os.Stdout})
	defer applier.Close()

	ddlDir := reg.Dir("ddl", rf.runID)
	if err := os.MkdirAll(ddlDir, 0o755); err != nil {
		return &core.DDLError{Err: err}
	}
	for i, stmt := range statements {
		_ = os.WriteFile(filepath.Join(ddlDir, fmt.Sprintf("%04d.sql", i)), []byte(stmt+";\n"), 0o644)
	}

	if dryRun {
		return applier.Apply(context.Background(), statements, result.Preflight)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := applier.Connect(ctx); err != nil {
		return &core.ConnectError{Engine: "mysql", Err: err}
	}
	return applier.Apply(ctx, statements, result.Preflight)
}

// --- migrate ---

func migrateCmd(rf *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy row data for every approved table from source to target",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runMigrate(rf)
		},
	}
	return cmd
}

func runMigrate(rf *rootFlags) error {
	if rf.runID == "" {
		return &core.ConfigError{Err: fmt.Errorf("--run-id is required")}
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := registryFor(rf)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Options{Debug: rf.debug})

	var art core.SchemaArtifact
	if err := artifact.ReadJSON(filepath.Join(reg.Dir("schemas", rf.runID), "_artifact.json"), &art); err != nil {
		return &core.SchemaError{Err: fmt.Errorf("load schema artifact: %w", err)}
	}
	sourceTables := make(map[string]*core.Table, len(art.Database.Tables))
	for _, t := range art.Database.Tables {
		sourceTables[t.Name] = t
	}

	store := approve.New(reg.Dir("mappings", rf.runID))
	var mappings []*core.TableMapping
	for _, t := range art.Database.Tables {
		tm, err := store.LoadApproved(t.Name)
		if err != nil {
			continue
		}
		mappings = append(mappings, tm)
	}

	gen := schemagen.New()
	result, err := gen.Generate(sourceTables, mappings)
	if err != nil {
		return err
	}

	srcConn, err := connector.New(art.SourceEngine)
	if err != nil {
		return &core.ConnectError{Engine: string(art.SourceEngine), Err: err}
	}
	tgtConn, err := connector.New(core.DialectMySQL)
	if err != nil {
		return &core.ConnectError{Engine: "mysql", Err: err}
	}
	ctx := context.Background()
	if err := srcConn.Connect(ctx, cfg.Source.DSN); err != nil {
		return &core.ConnectError{Engine: string(art.SourceEngine), Err: err}
	}
	defer srcConn.Close()
	if err := tgtConn.Connect(ctx, cfg.Target.DSN); err != nil {
		return &core.ConnectError{Engine: "mysql", Err: err}
	}
	defer tgtConn.Close()

	m := migrate.New(srcConn, tgtConn, rf.artifactDir, rf.runID, logger)
	if err := m.Run(ctx, mappings, result.Tables); err != nil {
		return err
	}
	fmt.Printf("migration complete for run %s\n", rf.runID)
	return nil
}

// --- validate ---

func validateCmd(rf *rootFlags) *cobra.Command {
	var seeded bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run row count, aggregate, and sample-hash checks against migrated tables",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runValidate(rf, seeded)
		},
	}
	cmd.Flags().BoolVar(&seeded, "seeded", true, "Derive the L3 sample seed from run ID and table (disable for an unseeded random sample)")
	return cmd
}

func runValidate(rf *rootFlags, seeded bool) error {
	if rf.runID == "" {
		return &core.ConfigError{Err: fmt.Errorf("--run-id is required")}
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := registryFor(rf)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Options{Debug: rf.debug})

	var art core.SchemaArtifact
	if err := artifact.ReadJSON(filepath.Join(reg.Dir("schemas", rf.runID), "_artifact.json"), &art); err != nil {
		return &core.SchemaError{Err: fmt.Errorf("load schema artifact: %w", err)}
	}
	store := approve.New(reg.Dir("mappings", rf.runID))

	srcConn, err := connector.New(art.SourceEngine)
	if err != nil {
		return &core.ConnectError{Engine: string(art.SourceEngine), Err: err}
	}
	tgtConn, err := connector.New(core.DialectMySQL)
	if err != nil {
		return &core.ConnectError{Engine: "mysql", Err: err}
	}
	ctx := context.Background()
	if err := srcConn.Connect(ctx, cfg.Source.DSN); err != nil {
		return &core.ConnectError{Engine: string(art.SourceEngine), Err: err}
	}
	defer srcConn.Close()
	if err := tgtConn.Connect(ctx, cfg.Target.DSN); err != nil {
		return &core.ConnectError{Engine: "mysql", Err: err}
	}
	defer tgtConn.Close()

	v := validate.New(srcConn, tgtConn, rf.runID, logger)

	var jobs []validate.Job
	for _, t := range art.Database.Tables {
		tm, err := store.LoadApproved(t.Name)
		if err != nil {
			continue
		}
		numericCol, targetCol := firstNumericColumn(tm)
		sourcePK, targetPK := firstPrimaryKeyColumns(tm)
		jobs = append(jobs, validate.Job{
			SourceTable: tm.SourceTable,
			TargetTable: tm.TargetTable,
			NumericCol:  numericCol,
			TargetCol:   targetCol,
			SourcePK:    sourcePK,
			TargetPK:    targetPK,
			Seeded:      seeded,
			Seed:        time.Now().UnixNano(),
		})
	}

	results, err := v.Run(ctx, jobs)
	if err != nil {
		return err
	}

	reportDir := reg.Dir("reports", rf.runID)
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return &core.ValidationFailure{Detail: err.Error()}
	}
	f, err := os.Create(filepath.Join(reportDir, "report.html"))
	if err != nil {
		return &core.ValidationFailure{Detail: err.Error()}
	}
	defer f.Close()
	if err := validate.WriteReport(f, rf.runID, results); err != nil {
		return &core.ValidationFailure{Detail: err.Error()}
	}

	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Printf("%-24s %-16s %s\n", r.Table, r.Level, status)
	}
	if !validate.AllPassed(results) {
		return &core.ValidationFailure{Detail: "one or more validation checks failed; see report.html"}
	}
	return nil
}

func firstPrimaryKeyColumns(tm *core.TableMapping) (source, target string) {
	for _, cm := range tm.Columns {
		if cm.Role == core.RolePrimaryKey {
			return cm.Source, cm.Target
		}
	}
	return "", ""
}

func firstNumericColumn(tm *core.TableMapping) (source, target string) {
	numeric := map[core.Canonical]bool{
		core.CanonicalInt1: true, core.CanonicalInt2: true, core.CanonicalInt4: true,
		core.CanonicalInt8: true, core.CanonicalFloat4: true, core.CanonicalFloat8: true,
		core.CanonicalDecimal: true,
	}
	for _, cm := range tm.Columns {
		if numeric[cm.CanonicalType] {
			return cm.Source, cm.Target
		}
	}
	return "", ""
}

// --- show-checkpoints ---

func showCheckpointsCmd(rf *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show-checkpoints",
		Short: "Render the checkpoint status of every table in a run",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runShowCheckpoints(rf)
		},
	}
	return cmd
}

func runShowCheckpoints(rf *rootFlags) error {
	if rf.runID == "" {
		return &core.ConfigError{Err: fmt.Errorf("--run-id is required")}
	}
	reg, err := registryFor(rf)
	if err != nil {
		return err
	}
	dir := reg.Dir("checkpoints", rf.runID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no checkpoints recorded for this run yet")
			return nil
		}
		return &core.LoadError{Err: err}
	}

	var cps []*core.Checkpoint
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var cp core.Checkpoint
		if err := artifact.ReadJSON(filepath.Join(dir, e.Name()), &cp); err != nil {
			continue
		}
		cps = append(cps, &cp)
	}
	sort.Slice(cps, func(i, j int) bool { return cps[i].Table < cps[j].Table })

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-24s %-10s %12s %10s %10s", "TABLE", "STATUS", "ROWS COPIED", "ERRORED", "PAGING")))
	for _, cp := range cps {
		paging := "keyset"
		if cp.UsesOffset {
			paging = warnStyle.Render("offset")
		}
		status := string(cp.Status)
		if cp.Status == core.CheckpointComplete {
			status = okStyle.Render(status)
		}
		fmt.Printf("%-24s %-10s %12d %10d %10s\n", cp.Table, status, cp.RowsCopied, cp.RowsErrored, paging)
	}
	return nil
}

// --- list-engines ---

func listEnginesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-engines",
		Short: "List supported source/target dialects",
		RunE: func(_ *cobra.Command, _ []string) error {
			for _, d := range core.SupportedDialects() {
				fmt.Println(d)
			}
			return nil
		},
	}
}
