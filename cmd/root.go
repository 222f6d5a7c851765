/*
Copyright © 2025 FHIRLake Contributors

FHIRLake is a CLI tool for curating FHIR bulk exports into a partitioned
analytics dataset.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fhirlake",
	Short: "FHIRLake - FHIR Export Curation Pipeline CLI",
	Long: `FHIRLake curates bulk FHIR NDJSON exports into a partitioned lake dataset.

For each resource type in the export, the pipeline:
  - tags every record with its tenant (from meta.security claims)
  - appends the records to a hive-partitioned NDJSON dataset
    (tenant, then export timestamp)
  - keeps a table catalog entry in sync with the written schema

Resource types are processed independently: one type failing never stops
the others, and every run ends with a per-type outcome report.

Example:
  fhirlake run start --source /data/healthlake/export
  fhirlake run status <run-id>
  fhirlake run list
  fhirlake catalog list

For more information, visit: https://github.com/thirdopinion/fhirlake`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./fhirlake.yaml, ~/.config/fhirlake/fhirlake.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	// Add version template
	rootCmd.SetVersionTemplate("FHIRLake version {{.Version}}\n")
}
