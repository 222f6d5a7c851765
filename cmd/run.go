package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/metrics"
	"github.com/thirdopinion/fhirlake/internal/models"
	"github.com/thirdopinion/fhirlake/internal/pipeline"
	"github.com/thirdopinion/fhirlake/internal/services"
	"github.com/thirdopinion/fhirlake/internal/ui"
)

var (
	runSource          string
	runExportTimestamp string
	runSingleTenant    bool
	runTypes           []string
	noProgress         bool
)

// runCmd represents the run command group
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Manage curation runs",
	Long: `Manage curation runs over FHIR bulk exports.

Available subcommands:
  start   - Start a new curation run
  status  - Check a run's per-type progress
  list    - List all known runs
  inspect - Preview a local export's files`,
}

// runStartCmd represents the run start command
var runStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new curation run",
	Long: `Start a new curation run over one export batch.

The run processes every roster resource type in order:
  Patient, Observation, Condition, MedicationRequest, Procedure,
  DiagnosticReport, Encounter, AllergyIntolerance, Immunization,
  CarePlan, Goal, MedicationStatement

For each type the pipeline reads <ResourceType>*.ndjson files from the
source, tags every record with its tenant, appends the records to the
curated dataset and syncs the catalog table. Types are isolated: one
type failing never stops the others, and the run always ends with a
per-type outcome report.

The source can be:
  • Local directory containing the bulk export
  • s3://bucket/prefix on the configured object store

Examples:
  # Curate a local export
  fhirlake run start --source /data/healthlake/export

  # Curate straight from the raw bucket
  fhirlake run start --source s3://raw-fhir/2024-06-01

  # Re-process an archived batch under its original stamp
  fhirlake run start --source /data/archive --export-timestamp 20240101T000000Z

  # Single-tenant deployment, subset of types
  fhirlake run start --source /data/export --single-tenant --types Patient,Observation`,
	Args: cobra.NoArgs,
	RunE: runRunStart,
}

// runStatusCmd represents the run status command
var runStatusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Check curation run status",
	Long: `Display the per-resource-type status of a curation run.

Shows:
  • Run ID, overall status and dataset destination
  • Stage for each resource type (pending/tagging/writing/syncing)
  • Outcome for finished types (done/failed/skipped)
  • Rows read and written, retries, error messages

The status command is designed for quick checks. Use 'watch' for
continuous monitoring:
  watch -n 5 fhirlake run status <run-id>

Examples:
  # Check run status
  fhirlake run status abc-123-def`,
	Args: cobra.ExactArgs(1),
	RunE: runRunStatus,
}

// runListCmd represents the run list command
var runListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all curation runs",
	Long: `List all curation runs in the state directory.

Shows:
  - Run ID
  - Status
  - Per-type outcome counts (done/failed/skipped)
  - Export timestamp
  - Age

Example:
  fhirlake run list`,
	RunE: runRunList,
}

// runInspectCmd represents the run inspect command
var runInspectCmd = &cobra.Command{
	Use:   "inspect [directory]",
	Short: "Preview a local export before curating it",
	Long: `Preview a local bulk export directory without starting a run.

Lists every NDJSON file with its resource type, size and resource
count, and flags files whose type is not part of the processing
roster (those files are ignored by 'run start').

The inspection reads every file once to count resources, so expect it
to take a moment on large exports.

Examples:
  # Inspect an export before curating it
  fhirlake run inspect /data/healthlake/export

  # Use the configured export path
  fhirlake run inspect`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRunInspect,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.AddCommand(runStartCmd)
	runCmd.AddCommand(runStatusCmd)
	runCmd.AddCommand(runListCmd)
	runCmd.AddCommand(runInspectCmd)

	// Flags for run start
	runStartCmd.Flags().StringVar(&runSource, "source", "", "export directory or s3://bucket/prefix (default: pipeline.export_path)")
	runStartCmd.Flags().StringVar(&runExportTimestamp, "export-timestamp", "", "export batch stamp (default: current UTC time)")
	runStartCmd.Flags().BoolVar(&runSingleTenant, "single-tenant", false, "tag every record as tenant \"default\" without reading claims")
	runStartCmd.Flags().StringSliceVar(&runTypes, "types", nil, "comma-separated subset of resource types to process")
	runStartCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress indicators")
}

func runRunStart(cmd *cobra.Command, args []string) error {
	// Load configuration
	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Flag overrides
	if runSingleTenant {
		config.Pipeline.MultiTenant = false
	}

	source := runSource
	if source == "" {
		source = config.Pipeline.ExportPath
	}
	if source == "" {
		return fmt.Errorf("no export source given: set --source or pipeline.export_path")
	}

	exportTimestamp := runExportTimestamp
	if exportTimestamp == "" {
		exportTimestamp = time.Now().UTC().Format("20060102T150405Z")
	}

	// Create logger
	logLevel := lib.LogLevelInfo
	if verbose {
		logLevel = lib.LogLevelDebug
	}
	logger := lib.NewLogger(logLevel)

	// Resolve requested resource types against the roster
	resourceTypes, err := lib.ResolveResourceTypes(runTypes)
	if err != nil {
		return err
	}

	// Create run
	logger.Info("Creating new curation run", "source", source, "export_timestamp", exportTimestamp)
	run, err := pipeline.CreateRun(source, exportTimestamp, resourceTypes, *config)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	lib.LogRunCreated(logger, run.RunID, source, exportTimestamp)

	mode := "multi-tenant"
	if !run.MultiTenant {
		mode = "single-tenant"
	}
	fmt.Printf("✓ Created curation run: %s\n", run.RunID)
	fmt.Printf("  Source: %s\n", source)
	fmt.Printf("  Export timestamp: %s\n", exportTimestamp)
	fmt.Printf("  Mode: %s\n", mode)
	fmt.Printf("  Resource types: %d\n", len(run.Jobs))
	fmt.Printf("\n")

	// One run per state directory at a time
	// Lock is automatically released when the function returns (via defer)
	lock, err := services.AcquireRunLock(config.StateDir, run.RunID, logger)
	if err != nil {
		return fmt.Errorf("cannot start run: %w", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Error("Failed to release run lock", "error", err)
		}
	}()

	// Wire the backends
	exportSource, err := services.NewExportSource(source, config.Dataset, logger)
	if err != nil {
		return fmt.Errorf("failed to open export source: %w", err)
	}

	datasetStore, err := services.NewDatasetStore(config.Dataset, config.Retry, logger)
	if err != nil {
		return fmt.Errorf("failed to open dataset store: %w", err)
	}
	defer func() {
		if err := datasetStore.Close(); err != nil {
			logger.Warn("Failed to close dataset store", "error", err)
		}
	}()

	catalogStore, err := services.NewCatalogStore(config.Catalog, config.Retry, logger)
	if err != nil {
		return fmt.Errorf("failed to open catalog store: %w", err)
	}
	defer func() {
		if err := catalogStore.Close(); err != nil {
			logger.Warn("Failed to close catalog store", "error", err)
		}
	}()

	tagger := pipeline.NewTagger(config.Pipeline, logger)
	runner := pipeline.NewRunner(exportSource, datasetStore, catalogStore, tagger, logger)

	var bar *ui.ProgressBar
	if !noProgress {
		bar = ui.NewProgressBar(int64(len(run.Jobs)), "Curating resource types")
		runner.Progress = func(models.ResourceJob) {
			_ = bar.Add(1)
		}
	}

	fmt.Println("Starting curation...")
	finalRun, err := runner.ExecuteRun(cmd.Context(), run)
	if bar != nil {
		_ = bar.Finish()
		fmt.Printf("\n")
	}
	if err != nil {
		return fmt.Errorf("run execution failed: %w", err)
	}

	// Push run metrics if a gateway is configured
	if config.Metrics.Enabled && config.Metrics.PushgatewayURL != "" {
		spinner := ui.NewSpinner("Pushing run metrics")
		spinner.Start()
		pushErr := metrics.PushToGateway(config.Metrics.PushgatewayURL, finalRun.RunID)
		spinner.Stop(pushErr == nil)
		if pushErr != nil {
			logger.Warn("Failed to push metrics", "gateway", config.Metrics.PushgatewayURL, "error", pushErr)
		}
	}

	fmt.Printf("\n")
	printRunReport(finalRun)

	return nil
}

// printRunReport prints the per-type outcome report in roster order,
// always ending with the completion line
func printRunReport(run *models.PipelineRun) {
	fmt.Printf("  %-20s %-10s %10s %13s  %s\n", "RESOURCE TYPE", "OUTCOME", "ROWS READ", "ROWS WRITTEN", "LOCATION")
	fmt.Println("  ----------------------------------------------------------------------------------------------")

	for _, job := range run.Jobs {
		detail := job.Location
		switch {
		case job.Stage == models.StageFailed && job.LastError != nil:
			detail = job.LastError.Message
		case job.Stage == models.StageSkipped:
			detail = "no data found"
		}

		fmt.Printf("%s %-20s %-10s %10d %13d  %s\n",
			getStageSymbol(job.Stage),
			job.ResourceType,
			job.Stage,
			job.RowsRead,
			job.RowsWritten,
			detail,
		)
	}

	done, failed, skipped := pipeline.CountOutcomes(run)
	fmt.Printf("\nRun %s: %d done, %d failed, %d skipped\n", run.RunID, done, failed, skipped)
	fmt.Println("ETL processing completed successfully")
}

func runRunStatus(cmd *cobra.Command, args []string) error {
	runID := args[0]

	// Load configuration
	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Load run
	run, err := pipeline.LoadRun(config.StateDir, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}

	// Display run summary
	fmt.Println(pipeline.GetRunSummary(run))

	// Display per-type details
	fmt.Println("Resource types:")
	for _, job := range run.Jobs {
		fmt.Printf("  %s %-20s - %s", getStageSymbol(job.Stage), job.ResourceType, job.Stage)

		if job.RowsRead > 0 || job.RowsWritten > 0 {
			fmt.Printf(" (%d read, %d written)", job.RowsRead, job.RowsWritten)
		}

		if job.RetryCount > 0 {
			fmt.Printf(" [%d retries]", job.RetryCount)
		}

		if job.LastError != nil {
			fmt.Printf("\n    Error: %s", job.LastError.Message)
		}

		fmt.Println()
	}

	return nil
}

func runRunList(cmd *cobra.Command, args []string) error {
	// Load configuration
	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// List all run IDs
	runIDs, err := services.ListAllRuns(config.StateDir)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runIDs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	// Load each run and display summary
	type runSummary struct {
		ID         string
		Status     string
		Outcomes   string
		Stamp      string
		CreatedAt  time.Time
		ElapsedStr string
	}

	var runs []runSummary
	for _, runID := range runIDs {
		run, err := pipeline.LoadRun(config.StateDir, runID)
		if err != nil {
			lib.DefaultLogger.Warn("Failed to load run", "run_id", runID, "error", err)
			continue
		}

		done, failed, skipped := pipeline.CountOutcomes(run)

		runs = append(runs, runSummary{
			ID:         run.RunID,
			Status:     string(run.Status),
			Outcomes:   fmt.Sprintf("%d/%d/%d", done, failed, skipped),
			Stamp:      run.ExportTimestamp,
			CreatedAt:  run.CreatedAt,
			ElapsedStr: formatDuration(time.Since(run.CreatedAt)),
		})
	}

	// Sort by creation time (newest first)
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	// Print table header
	fmt.Printf("%-38s %-15s %-16s %-18s %s\n", "RUN ID", "STATUS", "DONE/FAIL/SKIP", "EXPORT STAMP", "AGE")
	fmt.Println("------------------------------------------------------------------------------------------------")

	// Print runs
	for _, r := range runs {
		statusSymbol := getRunStatusSymbol(r.Status)
		fmt.Printf("%-38s %s %-13s %-16s %-18s %s\n",
			r.ID,
			statusSymbol,
			r.Status,
			r.Outcomes,
			r.Stamp,
			r.ElapsedStr,
		)
	}

	fmt.Printf("\nTotal: %d runs\n", len(runs))

	return nil
}

func runRunInspect(cmd *cobra.Command, args []string) error {
	// Load configuration
	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dir := config.Pipeline.ExportPath
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no export directory given: pass one or set pipeline.export_path")
	}
	if strings.HasPrefix(dir, "s3://") {
		return fmt.Errorf("inspect reads local directories only; object store exports are listed at run start")
	}

	// Create logger
	logLevel := lib.LogLevelInfo
	if verbose {
		logLevel = lib.LogLevelDebug
	}
	logger := lib.NewLogger(logLevel)

	files, err := services.InspectExport(dir, logger)
	if err != nil {
		return fmt.Errorf("failed to inspect export: %w", err)
	}

	if len(files) == 0 {
		fmt.Printf("No NDJSON files found in %s\n", dir)
		return nil
	}

	fmt.Printf("  %-40s %-20s %10s %10s\n", "FILE", "RESOURCE TYPE", "SIZE", "RESOURCES")
	fmt.Println("  --------------------------------------------------------------------------------")

	totalResources := 0
	foreign := 0
	for _, file := range files {
		marker := " "
		if !models.IsRosterResourceType(file.ResourceType) {
			marker = "!"
			foreign++
		}
		fmt.Printf("%s %-40s %-20s %10s %10d\n",
			marker,
			file.FileName,
			file.ResourceType,
			ui.FormatBytes(file.FileSize),
			file.LineCount,
		)
		totalResources += file.LineCount
	}

	fmt.Printf("\nTotal: %d files, %d resources\n", len(files), totalResources)
	if foreign > 0 {
		fmt.Printf("! %d file(s) outside the processing roster are ignored by 'run start'\n", foreign)
	}

	return nil
}

func getStageSymbol(stage models.Stage) string {
	switch stage {
	case models.StageDone:
		return "✓"
	case models.StageFailed:
		return "✗"
	case models.StageSkipped:
		return "-"
	case models.StageTagging, models.StageWriting, models.StageSyncing:
		return "→"
	case models.StagePending:
		return "○"
	default:
		return " "
	}
}

func getRunStatusSymbol(status string) string {
	switch status {
	case "completed":
		return "✓"
	case "running":
		return "→"
	case "failed":
		return "✗"
	case "pending":
		return "○"
	default:
		return " "
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	return fmt.Sprintf("%dd", days)
}
