package main

import (
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/ortelius/ms-dep-pkg-cud/deppkg"
	"github.com/ortelius/ms-dep-pkg-cud/importer"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Look up vulnerabilities for every ingested package",
	RunE:  runEnrich,
}

func runEnrich(cmd *cobra.Command, args []string) error {
	enricher, err := newEnricher(App().Config, App().DB)
	if err != nil {
		return err
	}
	return enricher.Enrich(cmd.Context())
}

func newEnricher(config deppkg.Config, db *gorm.DB) (*importer.Enricher, error) {
	feed := &importer.OSVClient{
		Endpoint: config.Enrichment.OSVEndpoint,
		Timeout:  config.Enrichment.Timeout.Duration,
	}
	return importer.NewEnricher(
		db,
		feed,
		deppkg.NewRetryPolicy(config.Retry),
		config.Rewriters,
	)
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}
