package deppkg

import (
	"fmt"
	"io"

	"gorm.io/gorm"
)

// CleanupComponent removes the dependency rows of a component. When depType
// is empty every format is removed. Vulnerability rows are shared between
// components and are left alone.
func CleanupComponent(
	out io.Writer,
	compID int,
	depType DependencyType,
	dryRun bool,
	db *gorm.DB,
) error {
	return db.Transaction(func(tx *gorm.DB) error {
		scope := func(db *gorm.DB) *gorm.DB {
			db = db.Where("compid = ?", compID)
			if depType != "" {
				db = db.Where("deptype = ?", depType)
			}
			return db
		}

		var deps []ComponentDep
		if err := tx.Scopes(scope).Find(&deps).Error; err != nil {
			return fmt.Errorf("could not find component deps: %w", err)
		}

		counts := map[DependencyType]int{}
		for _, dep := range deps {
			counts[dep.DepType]++
		}

		fmt.Fprintf(out, "Found %d component deps for component %d\n", len(deps), compID)
		for _, typ := range []DependencyType{DependencyTypeLicense, DependencyTypeSPDX, DependencyTypeCVE} {
			if counts[typ] > 0 {
				fmt.Fprintf(out, "- %s: %d\n", typ, counts[typ])
			}
		}

		if dryRun || len(deps) == 0 {
			return nil
		}

		fmt.Fprintf(out, "Deleting records for component %d\n", compID)
		if err := tx.Scopes(scope).Delete(&ComponentDep{}).Error; err != nil {
			return fmt.Errorf("could not delete records: %w", err)
		}
		return nil
	})
}
