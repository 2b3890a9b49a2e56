package deppkg

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 500

// Writer replaces the dependency rows of a component for one BOM format.
type Writer struct {
	DB    *gorm.DB
	Retry RetryPolicy
}

func NewWriter(db *gorm.DB, retry RetryPolicy) *Writer {
	return &Writer{DB: db, Retry: retry}
}

// Save deletes every row of (compID, depType) and inserts the deduplicated
// records in the same transaction. updated is true when at least one row was
// inserted, which is the case for any non-empty input since the previous rows
// are deleted first. An empty input never touches the database.
func (w *Writer) Save(
	ctx context.Context,
	compID int,
	depType DependencyType,
	records []ComponentDep,
) (updated bool, err error) {
	if len(records) == 0 {
		return false, nil
	}

	records = Dedup(records)

	err = w.Retry.Do(ctx, "save component deps", func() error {
		var inserted int64
		err := w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result := tx.
				Where("compid = ? AND deptype = ?", compID, depType).
				Delete(&ComponentDep{})
			if result.Error != nil {
				return fmt.Errorf("could not delete old component deps: %w", result.Error)
			}
			slog.Debug("deleted component deps", "compid", compID, "deptype", depType, "deleted", result.RowsAffected)

			result = tx.
				Clauses(clause.OnConflict{DoNothing: true}).
				CreateInBatches(records, insertBatchSize)
			if result.Error != nil {
				return fmt.Errorf("could not insert component deps: %w", result.Error)
			}
			inserted = result.RowsAffected
			return nil
		})
		if err != nil {
			return err
		}
		updated = inserted > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	slog.Info("saved component deps", "compid", compID, "deptype", depType, "records", len(records), "updated", updated)
	return updated, nil
}

// Dedup drops exact duplicates, keeping the first occurrence order.
func Dedup(records []ComponentDep) []ComponentDep {
	seen := make(map[ComponentDep]struct{}, len(records))
	result := make([]ComponentDep, 0, len(records))
	for _, record := range records {
		if _, ok := seen[record]; ok {
			continue
		}
		seen[record] = struct{}{}
		result = append(result, record)
	}
	return result
}
