package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	o "github.com/moznion/go-optional"

	"github.com/ortelius/ms-dep-pkg-cud/deppkg"
	"github.com/ortelius/ms-dep-pkg-cud/importer/safetydb"
)

// Stringable accepts JSON strings, numbers and null.
type Stringable string

var _ json.Unmarshaler = (*Stringable)(nil)

func (s *Stringable) UnmarshalJSON(b []byte) error {
	var value string
	err := json.Unmarshal(b, &value)
	if err == nil {
		*s = Stringable(value)
		return nil
	}

	var number json.Number
	err = json.Unmarshal(b, &number)
	if err != nil {
		return fmt.Errorf("stringable: cannot interpret value as string or number: %w", err)
	}

	*s = Stringable(number.String())
	return nil
}

func (s Stringable) String() string {
	return string(s)
}

// SafetyEntry is one row of a Safety check report:
// [package, affected spec, installed version, advisory, vulnerability id, ...].
// Columns are decoded lazily so rows carrying objects in columns that are not
// read, such as CVSS details, are accepted.
type SafetyEntry []json.RawMessage

// field returns column i as a string, or "" when it is missing or not a
// scalar.
func (e SafetyEntry) field(i int) string {
	if i >= len(e) {
		return ""
	}
	var value Stringable
	if err := json.Unmarshal(e[i], &value); err != nil {
		return ""
	}
	return value.String()
}

func (e SafetyEntry) Package() string { return e.field(0) }
func (e SafetyEntry) Version() string { return e.field(2) }
func (e SafetyEntry) Advisory() string { return e.field(3) }
func (e SafetyEntry) VendorID() string { return e.field(4) }

type SafetyReport []SafetyEntry

func DecodeSafety(r io.Reader) (report SafetyReport, err error) {
	err = json.NewDecoder(r).Decode(&report)
	if err != nil {
		return nil, fmt.Errorf("could not decode safety report: %w", err)
	}
	return report, nil
}

// NormalizeSafety resolves every Safety vulnerability id to a CVE id through
// the insecure package snapshot. Unknown ids are kept verbatim without a URL.
func NormalizeSafety(report SafetyReport, compID int, snapshot safetydb.Snapshot) []deppkg.ComponentDep {
	deps := make([]deppkg.ComponentDep, 0, len(report))
	for _, entry := range report {
		vendorID := entry.VendorID()

		cve := o.FlatMap(
			snapshot.Lookup(entry.Package(), vendorID),
			func(v safetydb.Advisory) o.Option[string] {
				return optionalString(v.CVE)
			})

		name := cve.TakeOr(vendorID)
		url := ""
		if cve.IsSome() && strings.HasPrefix(name, "CVE") {
			url = NVDDetailBaseURL + name
		}

		deps = append(deps, deppkg.ComponentDep{
			CompID:         compID,
			PackageName:    entry.Package(),
			PackageVersion: entry.Version(),
			DepType:        deppkg.DependencyTypeCVE,
			Name:           name,
			URL:            url,
			Summary:        entry.Advisory(),
		})
	}
	return deps
}
