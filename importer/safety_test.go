package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ortelius/ms-dep-pkg-cud/deppkg"
	"github.com/ortelius/ms-dep-pkg-cud/importer/safetydb"
)

const safetyReport = `[
  ["django", "<2.2.28", "2.2.0", "Django before 2.2.28 allows SQL injection.", "48040", null, null],
  ["jinja2", "<2.11.3", "2.10", "Jinja2 is vulnerable to ReDoS.", 39525],
  ["urllib3", "<1.26.5", "1.26.0", "Catastrophic backtracking.", "43975"],
  ["rsa", "<4.7", "4.0", "Timing attack.", "40541"]
]`

func insecureSnapshot() safetydb.Snapshot {
	return safetydb.Snapshot{
		"django": {
			{ID: "pyup.io-48040", CVE: "CVE-2022-28346", Advisory: "..."},
		},
		"jinja2": {
			{ID: "pyup.io-39525", CVE: "CVE-2020-28493"},
		},
		"rsa": {
			{ID: "pyup.io-40541", CVE: ""},
		},
	}
}

func TestNormalizeSafety(t *testing.T) {
	require := require.New(t)

	report, err := DecodeSafety(strings.NewReader(safetyReport))
	require.NoError(err)
	require.Len(report, 4)

	deps := NormalizeSafety(report, 3, insecureSnapshot())
	require.Equal([]deppkg.ComponentDep{
		{
			CompID:         3,
			PackageName:    "django",
			PackageVersion: "2.2.0",
			DepType:        deppkg.DependencyTypeCVE,
			Name:           "CVE-2022-28346",
			URL:            "https://nvd.nist.gov/vuln/detail/CVE-2022-28346",
			Summary:        "Django before 2.2.28 allows SQL injection.",
		},
		{
			CompID:         3,
			PackageName:    "jinja2",
			PackageVersion: "2.10",
			DepType:        deppkg.DependencyTypeCVE,
			Name:           "CVE-2020-28493",
			URL:            "https://nvd.nist.gov/vuln/detail/CVE-2020-28493",
			Summary:        "Jinja2 is vulnerable to ReDoS.",
		},
		{
			CompID:         3,
			PackageName:    "urllib3",
			PackageVersion: "1.26.0",
			DepType:        deppkg.DependencyTypeCVE,
			Name:           "43975",
			Summary:        "Catastrophic backtracking.",
		},
		{
			CompID:         3,
			PackageName:    "rsa",
			PackageVersion: "4.0",
			DepType:        deppkg.DependencyTypeCVE,
			Name:           "40541",
			Summary:        "Timing attack.",
		},
	}, deps)
}

func TestNormalizeSafetyWithEmptySnapshot(t *testing.T) {
	require := require.New(t)

	report, err := DecodeSafety(strings.NewReader(safetyReport))
	require.NoError(err)

	deps := NormalizeSafety(report, 3, safetydb.Snapshot{})
	require.Len(deps, 4)
	for _, dep := range deps {
		require.Empty(dep.URL)
		require.NotContains(dep.Name, "CVE")
	}
}

func TestNormalizeSafetyShortRows(t *testing.T) {
	require := require.New(t)

	report, err := DecodeSafety(strings.NewReader(`[["flask"]]`))
	require.NoError(err)

	deps := NormalizeSafety(report, 1, insecureSnapshot())
	require.Equal([]deppkg.ComponentDep{
		{
			CompID:      1,
			PackageName: "flask",
			DepType:     deppkg.DependencyTypeCVE,
		},
	}, deps)
}

func TestNonCVEIdentifierHasNoURL(t *testing.T) {
	require := require.New(t)

	report, err := DecodeSafety(strings.NewReader(`[["pyyaml", "<5.4", "5.3", "Arbitrary code execution.", "39611"]]`))
	require.NoError(err)

	snapshot := safetydb.Snapshot{
		"pyyaml": {{ID: "pyup.io-39611", CVE: "PVE-2021-39611"}},
	}
	deps := NormalizeSafety(report, 1, snapshot)
	require.Len(deps, 1)
	require.Equal("PVE-2021-39611", deps[0].Name)
	require.Empty(deps[0].URL)
}

func TestSafetyIgnoresUnreadColumns(t *testing.T) {
	require := require.New(t)

	report, err := DecodeSafety(strings.NewReader(
		`[["django", "<2.2.24", "2.2.0", "advisory text", "40637", {"base_score": 7.5}, null]]`,
	))
	require.NoError(err)

	deps := NormalizeSafety(report, 1, safetydb.Snapshot{})
	require.Equal([]deppkg.ComponentDep{
		{
			CompID:         1,
			PackageName:    "django",
			PackageVersion: "2.2.0",
			DepType:        deppkg.DependencyTypeCVE,
			Name:           "40637",
			Summary:        "advisory text",
		},
	}, deps)
}

func TestSafetyNonScalarColumnIsEmpty(t *testing.T) {
	require := require.New(t)

	report, err := DecodeSafety(strings.NewReader(`[[{"name": "django"}, "<1", ["2.2.0"], "text", 40637]]`))
	require.NoError(err)
	require.Len(report, 1)

	require.Empty(report[0].Package())
	require.Empty(report[0].Version())
	require.Equal("text", report[0].Advisory())
	require.Equal("40637", report[0].VendorID())
}

func TestDecodeSafetyRejectsNonArrays(t *testing.T) {
	_, err := DecodeSafety(strings.NewReader(`{"django": []}`))
	require.Error(t, err)

	_, err = DecodeSafety(strings.NewReader(`["django"]`))
	require.Error(t, err)
}
