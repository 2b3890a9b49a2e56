package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/CycloneDX/cyclonedx-go"
	o "github.com/moznion/go-optional"

	"github.com/ortelius/ms-dep-pkg-cud/deppkg"
)

const cycloneDXSpecVersionKey = "specVersion"

// DecodeCycloneDX decodes a JSON BOM. A specVersion the library does not
// know yet is dropped instead of failing the document.
func DecodeCycloneDX(r io.Reader) (*cyclonedx.BOM, error) {
	raw := map[string]json.RawMessage{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("could not decode cyclonedx bom: %w", err)
	}

	if value, ok := raw[cycloneDXSpecVersionKey]; ok {
		var version cyclonedx.SpecVersion
		if err := json.Unmarshal(value, &version); err != nil {
			slog.Debug("ignoring cyclonedx spec version", "specVersion", string(value), "err", err)
			delete(raw, cycloneDXSpecVersionKey)
		}
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("could not re-encode cyclonedx bom: %w", err)
	}

	bom := &cyclonedx.BOM{}
	err = cyclonedx.NewBOMDecoder(bytes.NewReader(data), cyclonedx.BOMFileFormatJSON).Decode(bom)
	if err != nil {
		return nil, fmt.Errorf("could not decode cyclonedx bom: %w", err)
	}
	return bom, nil
}

// NormalizeCycloneDX extracts the declared license of every top level
// component of bom.
func NormalizeCycloneDX(bom *cyclonedx.BOM, compID int) []deppkg.ComponentDep {
	if bom == nil || bom.Components == nil {
		return nil
	}

	deps := make([]deppkg.ComponentDep, 0, len(*bom.Components))
	for _, component := range *bom.Components {
		license := o.FlatMap(
			optionalPtr(component.Licenses),
			func(v cyclonedx.Licenses) o.Option[cyclonedx.LicenseChoice] {
				return OptionalFirst(v)
			}).
			TakeOr(cyclonedx.LicenseChoice{})

		name := ""
		if license.License != nil {
			switch {
			case license.License.ID != "":
				name = license.License.ID
			case license.License.Name != "":
				name = licenseName(license.License.Name)
			}
		}

		deps = append(deps, deppkg.ComponentDep{
			CompID:         compID,
			PackageName:    component.Name,
			PackageVersion: component.Version,
			DepType:        deppkg.DependencyTypeLicense,
			Name:           name,
			URL:            licenseURL(name),
			Purl:           component.PackageURL,
			PkgType:        packageType(component.PackageURL),
		})
	}

	return deps
}
