package deppkg

// DependencyType tags a component dependency row with the BOM format it was
// extracted from.
type DependencyType string

const (
	DependencyTypeLicense DependencyType = "license"
	DependencyTypeSPDX    DependencyType = "spdx_json"
	DependencyTypeCVE     DependencyType = "cve"
)

func (d DependencyType) String() string {
	return string(d)
}

// ComponentDep is one package reference extracted from a BOM for a
// component. All fields are comparable so a ComponentDep can be used as a map
// key when deduplicating a batch.
type ComponentDep struct {
	CompID         int            `gorm:"column:compid;primaryKey;autoIncrement:false"`
	PackageName    string         `gorm:"column:packagename;primaryKey;type:varchar(1024)"`
	PackageVersion string         `gorm:"column:packageversion;primaryKey;type:varchar(256)"`
	DepType        DependencyType `gorm:"column:deptype;primaryKey;type:varchar(80)"`
	Name           string         `gorm:"column:name;primaryKey;type:varchar(1024)"`
	URL            string         `gorm:"column:url"`
	Summary        string         `gorm:"column:summary"`
	Purl           string         `gorm:"column:purl"`
	PkgType        string         `gorm:"column:pkgtype;type:varchar(80)"`
}

func (ComponentDep) TableName() string {
	return "dm_componentdeps"
}

// Vulnerability is an advisory attached to a package version. Rows are only
// ever inserted, never updated.
type Vulnerability struct {
	PackageName    string  `gorm:"column:packagename;primaryKey;type:varchar(1024)"`
	PackageVersion string  `gorm:"column:packageversion;primaryKey;type:varchar(256)"`
	ID             string  `gorm:"column:id;primaryKey;type:varchar(256)"`
	Purl           string  `gorm:"column:purl"`
	Summary        string  `gorm:"column:summary"`
	RiskLevel      string  `gorm:"column:risklevel;type:varchar(20)"`
	Cvss           string  `gorm:"column:cvss;type:varchar(256)"`
	CvssScore      float64 `gorm:"column:cvssscore;type:numeric"`
}

func (Vulnerability) TableName() string {
	return "dm_vulns"
}

// PackageCoordinate is a distinct package reference used as the input of a
// vulnerability lookup.
type PackageCoordinate struct {
	PackageName    string `gorm:"column:packagename"`
	PackageVersion string `gorm:"column:packageversion"`
	Purl           string `gorm:"column:purl"`
}

// Models lists every table owned by this service.
func Models() []any {
	return []any{
		&ComponentDep{},
		&Vulnerability{},
	}
}
