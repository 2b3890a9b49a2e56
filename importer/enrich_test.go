package importer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/osv-scanner/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ortelius/ms-dep-pkg-cud/deppkg"
	"github.com/ortelius/ms-dep-pkg-cud/deppkg/deppkgtest"
)

type fakeFeed struct {
	mu      sync.Mutex
	vulns   map[string][]models.Vulnerability
	err     error
	queries []OSVQuery
}

func (f *fakeFeed) Query(ctx context.Context, query OSVQuery) ([]models.Vulnerability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.vulns[query.Package.Purl+query.Package.Name], nil
}

func testRetry() deppkg.RetryPolicy {
	policy := deppkg.DefaultRetryPolicy()
	policy.Delay = time.Millisecond
	return policy
}

func seedPackages(t *testing.T, enricher *Enricher) {
	t.Helper()

	writer := deppkg.NewWriter(enricher.DB, testRetry())
	_, err := writer.Save(context.Background(), 1, deppkg.DependencyTypeLicense, []deppkg.ComponentDep{
		{
			CompID:         1,
			PackageName:    "lodash",
			PackageVersion: "4.17.20",
			DepType:        deppkg.DependencyTypeLicense,
			Name:           "MIT",
			Purl:           "pkg:npm/lodash@4.17.20",
		},
		{
			CompID:         1,
			PackageName:    "left-pad",
			PackageVersion: "1.3.0",
			DepType:        deppkg.DependencyTypeLicense,
			Name:           "WTFPL",
		},
	})
	require.NoError(t, err)

	// Only license rows are enriched.
	_, err = writer.Save(context.Background(), 1, deppkg.DependencyTypeSPDX, []deppkg.ComponentDep{
		{
			CompID:         1,
			PackageName:    "express",
			PackageVersion: "4.18.2",
			DepType:        deppkg.DependencyTypeSPDX,
			Purl:           "pkg:npm/express@4.18.2",
		},
	})
	require.NoError(t, err)
}

func lodashAdvisories() map[string][]models.Vulnerability {
	return map[string][]models.Vulnerability{
		"pkg:npm/lodash@4.17.20": {
			{
				ID:      "GHSA-35jh-r3h4-6jhm",
				Summary: "Command Injection in lodash",
				Aliases: []string{"CVE-2021-23337"},
				Severity: []models.Severity{
					{Type: models.SeverityCVSSV3, Score: "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:L/I:L/A:L"},
				},
			},
			{
				ID:               "GHSA-29mw-wpgm-hmr9",
				Details:          "Regular Expression Denial of Service in lodash",
				DatabaseSpecific: map[string]any{"severity": "MODERATE"},
			},
		},
	}
}

func newTestEnricher(t *testing.T, feed VulnerabilityFeed) *Enricher {
	t.Helper()

	enricher, err := NewEnricher(deppkgtest.NewDB(t), feed, testRetry(), nil)
	require.NoError(t, err)
	seedPackages(t, enricher)
	return enricher
}

func TestEnrichStoresVulnerabilities(t *testing.T) {
	require := require.New(t)

	feed := &fakeFeed{vulns: lodashAdvisories()}
	enricher := newTestEnricher(t, feed)

	require.NoError(enricher.Enrich(context.Background()))

	require.ElementsMatch([]OSVQuery{
		{Package: OSVPackage{Purl: "pkg:npm/lodash@4.17.20"}},
		{Package: OSVPackage{Name: "left-pad"}, Version: "1.3.0"},
	}, feed.queries)

	vulns := deppkgtest.Vulnerabilities(t, enricher.DB)
	require.Len(vulns, 2)

	require.Equal("GHSA-29mw-wpgm-hmr9", vulns[0].ID)
	require.Equal("Medium", vulns[0].RiskLevel)
	require.Equal("Regular Expression Denial of Service in lodash", vulns[0].Summary)
	require.Empty(vulns[0].Cvss)

	require.Equal("GHSA-35jh-r3h4-6jhm", vulns[1].ID)
	require.Equal("lodash", vulns[1].PackageName)
	require.Equal("4.17.20", vulns[1].PackageVersion)
	require.Equal("pkg:npm/lodash@4.17.20", vulns[1].Purl)
	require.Equal("Critical", vulns[1].RiskLevel)
	require.Equal("CVE-2021-23337: Command Injection in lodash", vulns[1].Summary)
	require.Equal("CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:L/I:L/A:L", vulns[1].Cvss)
	require.InDelta(7.3, vulns[1].CvssScore, 0.001)
}

func TestEnrichIsIdempotent(t *testing.T) {
	require := require.New(t)

	enricher := newTestEnricher(t, &fakeFeed{vulns: lodashAdvisories()})

	require.NoError(enricher.Enrich(context.Background()))
	require.NoError(enricher.Enrich(context.Background()))

	require.Len(deppkgtest.Vulnerabilities(t, enricher.DB), 2)
}

func TestConcurrentEnrichDoesNotDuplicate(t *testing.T) {
	require := require.New(t)

	enricher := newTestEnricher(t, &fakeFeed{vulns: lodashAdvisories()})

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, enricher.Enrich(context.Background()))
		}()
	}
	wg.Wait()

	require.Len(deppkgtest.Vulnerabilities(t, enricher.DB), 2)
}

func TestEnrichToleratesFeedOutage(t *testing.T) {
	require := require.New(t)

	feed := &fakeFeed{err: errors.New("connection refused")}
	enricher := newTestEnricher(t, feed)

	require.NoError(enricher.Enrich(context.Background()))
	require.Len(feed.queries, 2)
	require.Empty(deppkgtest.Vulnerabilities(t, enricher.DB))
}

func TestEnrichAppliesRewriters(t *testing.T) {
	require := require.New(t)

	feed := &fakeFeed{}
	enricher, err := NewEnricher(deppkgtest.NewDB(t), feed, testRetry(), []deppkg.Rewriter{
		{Predicate: `purl == ""`, RewriteRule: `fmt(name, "npm-%s")`},
	})
	require.NoError(err)
	seedPackages(t, enricher)

	require.NoError(enricher.Enrich(context.Background()))
	require.Contains(feed.queries, OSVQuery{Package: OSVPackage{Name: "npm-left-pad"}, Version: "1.3.0"})
}

func TestEnrichStopsOnCancelledContext(t *testing.T) {
	enricher := newTestEnricher(t, &fakeFeed{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, enricher.Enrich(ctx))
}

func TestAdvisoryDescription(t *testing.T) {
	tests := []struct {
		name     string
		advisory models.Vulnerability
		want     string
	}{
		{
			name:     "aliases and summary",
			advisory: models.Vulnerability{Aliases: []string{"CVE-2021-1", "PYSEC-2021-2"}, Summary: "Bad"},
			want:     "CVE-2021-1 PYSEC-2021-2: Bad",
		},
		{
			name:     "details fallback",
			advisory: models.Vulnerability{Details: "Long text"},
			want:     "Long text",
		},
		{
			name:     "aliases only",
			advisory: models.Vulnerability{Aliases: []string{"CVE-2021-1"}},
			want:     "CVE-2021-1",
		},
		{
			name: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, advisoryDescription(tt.advisory))
		})
	}
}

func TestNewVulnerabilityWithoutSeverity(t *testing.T) {
	require := require.New(t)

	vuln := NewVulnerability(
		deppkg.PackageCoordinate{PackageName: "left-pad", PackageVersion: "1.3.0"},
		models.Vulnerability{ID: "OSV-1"},
	)
	require.Equal(deppkg.Vulnerability{
		PackageName:    "left-pad",
		PackageVersion: "1.3.0",
		ID:             "OSV-1",
	}, vuln)
}
