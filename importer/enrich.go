package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/osv-scanner/pkg/models"
	o "github.com/moznion/go-optional"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ortelius/ms-dep-pkg-cud/cvss"
	"github.com/ortelius/ms-dep-pkg-cud/deppkg"
)

// VulnerabilityFeed looks up the advisories of a package.
type VulnerabilityFeed interface {
	Query(ctx context.Context, query OSVQuery) ([]models.Vulnerability, error)
}

// Enricher attaches vulnerabilities to every package whose license BOM has
// been ingested.
type Enricher struct {
	DB        *gorm.DB
	Feed      VulnerabilityFeed
	Retry     deppkg.RetryPolicy
	Rewriters []compiledRewriter
}

func NewEnricher(
	db *gorm.DB,
	feed VulnerabilityFeed,
	retry deppkg.RetryPolicy,
	rewriters []deppkg.Rewriter,
) (*Enricher, error) {
	compiled, err := CompileRewriters(rewriters)
	if err != nil {
		return nil, err
	}
	return &Enricher{
		DB:        db,
		Feed:      feed,
		Retry:     retry,
		Rewriters: compiled,
	}, nil
}

// Enrich runs one pass over the stored packages. Feed failures and failures
// to store the advisories of a single package are logged and do not stop the
// pass.
func (e *Enricher) Enrich(ctx context.Context) error {
	coords, err := e.packages(ctx)
	if err != nil {
		return err
	}
	slog.Info("Enriching packages with vulnerabilities", "packages", len(coords))

	var added int64
	for _, coord := range coords {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := e.ProcessPackage(ctx, coord)
		if err != nil {
			slog.Error(
				"could not store vulnerabilities",
				"package", coord.PackageName,
				"version", coord.PackageVersion,
				"err", err,
			)
			continue
		}
		added += n
	}

	slog.Info("Finished enriching packages", "packages", len(coords), "added", added)
	return nil
}

func (e *Enricher) packages(ctx context.Context) ([]deppkg.PackageCoordinate, error) {
	var coords []deppkg.PackageCoordinate
	err := e.Retry.Do(ctx, "select packages", func() error {
		coords = nil
		return e.DB.WithContext(ctx).
			Model(&deppkg.ComponentDep{}).
			Distinct("packagename", "packageversion", "purl").
			Where("deptype = ?", deppkg.DependencyTypeLicense).
			Order("packagename, packageversion, purl").
			Scan(&coords).Error
	})
	if err != nil {
		return nil, fmt.Errorf("could not select packages: %w", err)
	}
	return coords, nil
}

// ProcessPackage queries the feed for one package and inserts the advisories
// that are not stored yet. It returns the number of inserted rows.
func (e *Enricher) ProcessPackage(ctx context.Context, coord deppkg.PackageCoordinate) (int64, error) {
	lookup := coord
	for _, rewriter := range e.Rewriters {
		lookup = rewriter.Rewrite(lookup)
	}

	advisories, err := e.Feed.Query(ctx, NewOSVQuery(lookup))
	if err != nil {
		slog.Warn(
			"vulnerability feed unavailable",
			"package", coord.PackageName,
			"version", coord.PackageVersion,
			"err", err,
		)
		return 0, nil
	}
	if len(advisories) == 0 {
		return 0, nil
	}

	vulns := make([]deppkg.Vulnerability, 0, len(advisories))
	for _, advisory := range advisories {
		vulns = append(vulns, NewVulnerability(coord, advisory))
	}

	var inserted int64
	err = e.Retry.Do(ctx, "insert vulnerabilities", func() error {
		inserted = 0
		return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, vuln := range vulns {
				result := tx.
					Clauses(clause.OnConflict{DoNothing: true}).
					Create(&vuln)
				if result.Error != nil {
					return fmt.Errorf("could not insert vulnerability %s: %w", vuln.ID, result.Error)
				}
				if result.RowsAffected == 0 {
					slog.Debug("vulnerability already known", "package", vuln.PackageName, "id", vuln.ID)
				}
				inserted += result.RowsAffected
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

// NewVulnerability derives the stored row of an advisory affecting coord.
func NewVulnerability(coord deppkg.PackageCoordinate, advisory models.Vulnerability) deppkg.Vulnerability {
	vector := o.Map(OptionalFirst(advisory.Severity), func(v models.Severity) string {
		return v.Score
	})

	vuln := deppkg.Vulnerability{
		PackageName:    coord.PackageName,
		PackageVersion: coord.PackageVersion,
		Purl:           coord.Purl,
		ID:             advisory.ID,
		Summary:        advisoryDescription(advisory),
		RiskLevel:      cvss.RiskOf(vector, databaseSeverity(advisory)).String(),
		Cvss:           vector.TakeOr(""),
	}
	vector.IfSome(func(v string) {
		vuln.CvssScore = cvss.OfficialScore(v).TakeOr(0)
	})
	return vuln
}

// advisoryDescription prefixes the summary with the advisory aliases:
// "CVE-2021-1 GHSA-xxxx: summary".
func advisoryDescription(advisory models.Vulnerability) string {
	summary := optionalString(advisory.Summary).
		Or(optionalString(advisory.Details)).
		TakeOr("")

	if len(advisory.Aliases) == 0 {
		return summary
	}
	aliases := strings.Join(advisory.Aliases, " ")
	if summary == "" {
		return aliases
	}
	return aliases + ": " + summary
}

func databaseSeverity(advisory models.Vulnerability) string {
	severity, _ := advisory.DatabaseSpecific["severity"].(string)
	return severity
}
