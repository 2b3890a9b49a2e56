// Package deppkgtest provides datastore fixtures for tests.
package deppkgtest

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/ortelius/ms-dep-pkg-cud/deppkg"
)

// NewDB returns a migrated sqlite database stored in a temporary directory.
// A single connection is used so concurrent writers queue up instead of
// failing with SQLITE_BUSY.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "deppkg.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
		SkipDefaultTransaction: true,
		Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(deppkg.Models()...))
	return db
}

// ComponentDeps returns every stored dependency row of a component ordered by
// its primary key.
func ComponentDeps(t *testing.T, db *gorm.DB, compID int) []deppkg.ComponentDep {
	t.Helper()

	var deps []deppkg.ComponentDep
	err := db.
		Where("compid = ?", compID).
		Order("deptype, packagename, packageversion, name").
		Find(&deps).Error
	require.NoError(t, err)
	return deps
}

// Vulnerabilities returns every stored vulnerability row.
func Vulnerabilities(t *testing.T, db *gorm.DB) []deppkg.Vulnerability {
	t.Helper()

	var vulns []deppkg.Vulnerability
	err := db.Order("packagename, packageversion, id").Find(&vulns).Error
	require.NoError(t, err)
	return vulns
}
