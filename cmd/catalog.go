package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/services"
)

// catalogCmd represents the catalog command group
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the table catalog",
	Long: `Inspect the table catalog kept in sync by curation runs.

Available subcommands:
  list - List registered tables
  show - Show one table's definition`,
}

// catalogListCmd represents the catalog list command
var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered catalog tables",
	Long: `List the tables registered in the configured catalog database.

Example:
  fhirlake catalog list`,
	RunE: runCatalogList,
}

// catalogShowCmd represents the catalog show command
var catalogShowCmd = &cobra.Command{
	Use:   "show <table>",
	Short: "Show a catalog table definition",
	Long: `Show the full definition of one catalog table: columns, partition
keys, dataset location and storage format.

Table names are resource types lowercased.

Examples:
  fhirlake catalog show patient
  fhirlake catalog show observation`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogShow,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogShowCmd)
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	// Load configuration
	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logLevel := lib.LogLevelInfo
	if verbose {
		logLevel = lib.LogLevelDebug
	}
	logger := lib.NewLogger(logLevel)

	store, err := services.NewCatalogStore(config.Catalog, config.Retry, logger)
	if err != nil {
		return fmt.Errorf("failed to open catalog store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close catalog store", "error", err)
		}
	}()

	tables, err := store.ListTables(cmd.Context(), config.Catalog.Database)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	if len(tables) == 0 {
		fmt.Printf("No tables in database %s\n", config.Catalog.Database)
		return nil
	}

	fmt.Printf("Database: %s\n\n", config.Catalog.Database)
	for _, name := range tables {
		fmt.Printf("  %s\n", name)
	}
	fmt.Printf("\nTotal: %d tables\n", len(tables))

	return nil
}

func runCatalogShow(cmd *cobra.Command, args []string) error {
	tableName := args[0]

	// Load configuration
	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logLevel := lib.LogLevelInfo
	if verbose {
		logLevel = lib.LogLevelDebug
	}
	logger := lib.NewLogger(logLevel)

	store, err := services.NewCatalogStore(config.Catalog, config.Retry, logger)
	if err != nil {
		return fmt.Errorf("failed to open catalog store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close catalog store", "error", err)
		}
	}()

	table, err := store.GetTable(cmd.Context(), config.Catalog.Database, tableName)
	if err != nil {
		return fmt.Errorf("failed to fetch table: %w", err)
	}

	fmt.Printf("Table %s.%s\n", table.Database, table.Name)
	fmt.Printf("Location: %s\n", table.Location)
	fmt.Printf("Table type: %s\n", table.TableType)
	fmt.Printf("Input format: %s\n", table.InputFormat)
	fmt.Printf("Output format: %s\n", table.OutputFormat)
	fmt.Printf("Serde: %s\n", table.SerdeLibrary)

	fmt.Println("\nPartition keys:")
	for _, key := range table.PartitionKeys {
		fmt.Printf("  %-30s %s\n", key.Name, key.Type)
	}

	fmt.Println("\nColumns:")
	for _, col := range table.Columns {
		fmt.Printf("  %-30s %s\n", col.Name, col.Type)
	}

	if len(table.Parameters) > 0 {
		params := make([]string, 0, len(table.Parameters))
		for key := range table.Parameters {
			params = append(params, key)
		}
		sort.Strings(params)

		fmt.Println("\nParameters:")
		for _, key := range params {
			fmt.Printf("  %s=%s\n", key, table.Parameters[key])
		}
	}

	if !table.UpdatedAt.IsZero() {
		fmt.Printf("\nUpdated: %s\n", table.UpdatedAt.Format(time.RFC3339))
	}

	return nil
}
