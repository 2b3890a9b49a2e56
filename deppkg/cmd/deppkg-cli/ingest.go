package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ortelius/ms-dep-pkg-cud/deppkg"
	"github.com/ortelius/ms-dep-pkg-cud/importer"
	"github.com/ortelius/ms-dep-pkg-cud/importer/safetydb"
)

var ingestCmd = &cobra.Command{
	Use:       "ingest <cyclonedx|spdx|safety> <file>",
	Short:     "Ingest a BOM file for a component",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"cyclonedx", "spdx", "safety"},
	RunE:      runIngest,
}

var ingestFlags = struct {
	compID int
	enrich bool
}{}

func runIngest(cmd *cobra.Command, args []string) error {
	format, path := args[0], args[1]

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", path, err)
	}
	defer f.Close()

	depType, records, err := normalizeFile(cmd, format, f)
	if err != nil {
		return err
	}

	config := App().Config
	writer := deppkg.NewWriter(App().DB, deppkg.NewRetryPolicy(config.Retry))
	updated, err := writer.Save(cmd.Context(), ingestFlags.compID, depType, records)
	if err != nil {
		return err
	}
	slog.Info(
		"Ingested BOM",
		"compid", ingestFlags.compID,
		"deptype", depType,
		"records", len(records),
		"updated", updated,
	)

	if depType != deppkg.DependencyTypeSPDX || !ingestFlags.enrich {
		return nil
	}
	enricher, err := newEnricher(config, App().DB)
	if err != nil {
		return err
	}
	return enricher.Enrich(cmd.Context())
}

func normalizeFile(cmd *cobra.Command, format string, r io.Reader) (deppkg.DependencyType, []deppkg.ComponentDep, error) {
	compID := ingestFlags.compID

	switch format {
	case "cyclonedx":
		bom, err := importer.DecodeCycloneDX(r)
		if err != nil {
			return "", nil, err
		}
		return deppkg.DependencyTypeLicense, importer.NormalizeCycloneDX(bom, compID), nil
	case "spdx":
		doc, err := importer.DecodeSPDX(r)
		if err != nil {
			return "", nil, err
		}
		return deppkg.DependencyTypeSPDX, importer.NormalizeSPDX(doc, compID), nil
	case "safety":
		report, err := importer.DecodeSafety(r)
		if err != nil {
			return "", nil, err
		}
		config := App().Config.SafetyDB
		loader, err := safetydb.NewLoader(config.Source, config.URL, config.Remote, config.RepoPath, config.Timeout.Duration)
		if err != nil {
			return "", nil, err
		}
		snapshot := safetydb.NewCache(loader).Get(cmd.Context())
		return deppkg.DependencyTypeCVE, importer.NormalizeSafety(report, compID, snapshot), nil
	default:
		return "", nil, fmt.Errorf("unknown BOM format %q", format)
	}
}

func init() {
	ingestCmd.Flags().IntVar(&ingestFlags.compID, "compid", 0, "Component id the BOM belongs to")
	ingestCmd.Flags().BoolVar(&ingestFlags.enrich, "enrich", false, "Look up vulnerabilities after an SPDX ingest")
	ingestCmd.MarkFlagRequired("compid")
	rootCmd.AddCommand(ingestCmd)
}
