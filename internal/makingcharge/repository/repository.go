package repository

import (
	"context"

	"github.com/smallbiznis/karat/internal/makingcharge/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByCategory(ctx context.Context, db *gorm.DB, category string) (*domain.CategoryMakingCharge, error) {
	if category == "" {
		return nil, nil
	}
	var rows []domain.CategoryMakingCharge
	err := db.WithContext(ctx).Raw(
		`SELECT category, display_name, making_charge_percent, min_making_charge,
		        created_at, updated_at
		 FROM category_making_charges
		 WHERE category = ?`,
		category,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.CategoryMakingCharge, error) {
	var rows []domain.CategoryMakingCharge
	err := db.WithContext(ctx).Raw(
		`SELECT category, display_name, making_charge_percent, min_making_charge,
		        created_at, updated_at
		 FROM category_making_charges
		 ORDER BY category ASC`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, row *domain.CategoryMakingCharge) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "category"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"display_name",
				"making_charge_percent",
				"min_making_charge",
				"updated_at",
			}),
		}).
		Create(row).Error
}
