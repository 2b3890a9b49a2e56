package importer

import (
	"strings"
)

const (
	SPDXLicenseBaseURL = "https://spdx.org/licenses/"
	NVDDetailBaseURL   = "https://nvd.nist.gov/vuln/detail/"
)

// packageType derives the ecosystem from a purl: "pkg:npm/lodash@4" is "npm".
func packageType(purl string) string {
	if !strings.Contains(purl, ":") {
		return ""
	}
	scheme, _, _ := strings.Cut(purl, "/")
	if len(scheme) <= 4 {
		return ""
	}
	return scheme[4:]
}

// licenseName keeps the text before the first comma; some generators emit a
// comma separated list in a single license field.
func licenseName(name string) string {
	name, _, _ = strings.Cut(name, ",")
	return name
}

func licenseURL(name string) string {
	if name == "" {
		return ""
	}
	return SPDXLicenseBaseURL + name + ".html"
}
