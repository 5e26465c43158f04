// Package repo implements the data persistence layer for moderation state,
// backed by GORM. This file provides the processed-update ledger used by
// webhook ingress to acknowledge re-delivered updates without running the
// pipeline twice.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gtajisan/p2a-modbot/internal/domain"
)

// MarkUpdateProcessed records updateID in the ledger. It reports true when
// this is the first time the update has been seen, false when the row already
// existed (a platform re-delivery).
func MarkUpdateProcessed(ctx context.Context, db *gorm.DB, updateID int64, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "update_id"}},
		DoNothing: true,
	}).Create(&domain.ProcessedUpdate{UpdateID: updateID, SeenAt: now.UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// PurgeUpdatesBefore removes ledger rows first seen before cutoff. The
// platform stops re-delivering after roughly a day, so old rows carry no
// information. Returns the number of rows removed.
func PurgeUpdatesBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("seen_at < ?", cutoff.UTC()).
		Delete(&domain.ProcessedUpdate{})
	return res.RowsAffected, res.Error
}
