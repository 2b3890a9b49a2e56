package importer

import (
	"encoding/json"
	"fmt"
	"io"

	o "github.com/moznion/go-optional"

	"github.com/ortelius/ms-dep-pkg-cud/deppkg"
)

const spdxNoAssertion = "NOASSERTION"

type SPDXDocument struct {
	SPDXID      o.Option[string] `json:"SPDXID"`
	SPDXVersion o.Option[string] `json:"spdxVersion"`
	Name        o.Option[string] `json:"name"`
	Packages    []SPDXPackage    `json:"packages"`
}

type SPDXPackage struct {
	SPDXID          o.Option[string]  `json:"SPDXID"`
	Name            o.Option[string]  `json:"name"`
	VersionInfo     o.Option[string]  `json:"versionInfo"`
	LicenseDeclared o.Option[string]  `json:"licenseDeclared"`
	ExternalRefs    []SPDXExternalRef `json:"externalRefs"`
}

type SPDXExternalRef struct {
	ReferenceCategory o.Option[string] `json:"referenceCategory"`
	ReferenceType     o.Option[string] `json:"referenceType"`
	ReferenceLocator  o.Option[string] `json:"referenceLocator"`
}

func DecodeSPDX(r io.Reader) (doc SPDXDocument, err error) {
	err = json.NewDecoder(r).Decode(&doc)
	if err != nil {
		return doc, fmt.Errorf("could not decode spdx document: %w", err)
	}
	return doc, nil
}

// Purl returns the locator of the last external reference of type purl.
func (p SPDXPackage) Purl() o.Option[string] {
	purl := o.None[string]()
	for _, ref := range p.ExternalRefs {
		if ref.ReferenceType.TakeOr("") == "purl" {
			purl = o.Some(ref.ReferenceLocator.TakeOr(""))
		}
	}
	return purl
}

// License returns the declared license, None when it is NOASSERTION.
func (p SPDXPackage) License() o.Option[string] {
	return o.FlatMap(p.LicenseDeclared, func(v string) o.Option[string] {
		if v == spdxNoAssertion {
			return o.None[string]()
		}
		return optionalString(licenseName(v))
	})
}

func NormalizeSPDX(doc SPDXDocument, compID int) []deppkg.ComponentDep {
	deps := make([]deppkg.ComponentDep, 0, len(doc.Packages))
	for _, pkg := range doc.Packages {
		purl := pkg.Purl().TakeOr("")
		name := pkg.License().TakeOr("")

		deps = append(deps, deppkg.ComponentDep{
			CompID:         compID,
			PackageName:    pkg.Name.TakeOr(""),
			PackageVersion: pkg.VersionInfo.TakeOr(""),
			DepType:        deppkg.DependencyTypeSPDX,
			Name:           name,
			URL:            licenseURL(name),
			Purl:           purl,
			PkgType:        packageType(purl),
		})
	}
	return deps
}
