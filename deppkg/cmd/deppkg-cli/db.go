package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ortelius/ms-dep-pkg-cud/deppkg"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Commands to work with the database",
}

var dbCleanCmd = &cobra.Command{
	Use:   "clean <compid>",
	Short: "Remove the dependency records of a component",
	RunE:  runDBClean,
}

var dbPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the database is reachable",
	RunE:  runDBPing,
}

var gcFlags = struct {
	dryRun  bool
	depType string
}{}

func runDBClean(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return cmd.Usage()
	}

	compID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid compid %q: %w", args[0], err)
	}

	depType := deppkg.DependencyType(gcFlags.depType)
	switch depType {
	case "", deppkg.DependencyTypeLicense, deppkg.DependencyTypeSPDX, deppkg.DependencyTypeCVE:
	default:
		return fmt.Errorf("unknown dependency type %q", gcFlags.depType)
	}

	return deppkg.CleanupComponent(
		cmd.OutOrStdout(),
		compID,
		depType,
		gcFlags.dryRun,
		App().DB,
	)
}

func runDBPing(cmd *cobra.Command, args []string) error {
	if err := deppkg.Ping(cmd.Context(), App().DB); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "UP")
	return nil
}

func init() {
	dbCmd.PersistentFlags().BoolVarP(&gcFlags.dryRun, "dry-run", "n", false, "Only show the amount of records found")
	dbCleanCmd.Flags().StringVarP(&gcFlags.depType, "type", "t", "", "Only remove records of this type (license, spdx_json, cve)")

	dbCmd.AddCommand(dbCleanCmd)
	dbCmd.AddCommand(dbPingCmd)
	rootCmd.AddCommand(dbCmd)
}
