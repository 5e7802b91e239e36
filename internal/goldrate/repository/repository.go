package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/karat/internal/goldrate/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rate *domain.GoldRate) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO gold_rates (
			id, rate_22k, rate_24k, rate_18k, silver_rate,
			effective_date, is_current, source, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rate.ID,
		rate.Rate22K,
		rate.Rate24K,
		rate.Rate18K,
		rate.SilverRate,
		rate.EffectiveDate,
		rate.IsCurrent,
		rate.Source,
		rate.CreatedAt,
	).Error
}

func (r *repo) DemoteCurrent(ctx context.Context, db *gorm.DB) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE gold_rates SET is_current = ? WHERE is_current = ?`,
		false, true,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) FindCurrent(ctx context.Context, db *gorm.DB) (*domain.GoldRate, error) {
	var rates []domain.GoldRate
	err := db.WithContext(ctx).Raw(
		`SELECT id, rate_22k, rate_24k, rate_18k, silver_rate,
		        effective_date, is_current, source, created_at
		 FROM gold_rates
		 WHERE is_current = ?
		 ORDER BY id DESC
		 LIMIT 1`,
		true,
	).Scan(&rates).Error
	if err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return nil, nil
	}
	return &rates[0], nil
}

func (r *repo) FindCurrentForShare(ctx context.Context, db *gorm.DB) (*domain.GoldRate, error) {
	rate, err := r.findCurrentLocked(ctx, db)
	if err != nil || rate != nil {
		return rate, err
	}
	// Under read committed a statement that waited on a demoted row does not
	// see the row inserted by the same transaction; a fresh statement does.
	return r.findCurrentLocked(ctx, db)
}

func (r *repo) findCurrentLocked(ctx context.Context, db *gorm.DB) (*domain.GoldRate, error) {
	var rates []domain.GoldRate
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("is_current = ?", true).
		Order("id DESC").
		Limit(1).
		Find(&rates).Error
	if err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return nil, nil
	}
	return &rates[0], nil
}

func (r *repo) CountCurrent(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM gold_rates WHERE is_current = ?`,
		true,
	).Scan(&count).Error
	return count, err
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.GoldRate, error) {
	if id == 0 {
		return nil, nil
	}
	var rates []domain.GoldRate
	err := db.WithContext(ctx).Raw(
		`SELECT id, rate_22k, rate_24k, rate_18k, silver_rate,
		        effective_date, is_current, source, created_at
		 FROM gold_rates
		 WHERE id = ?`,
		id,
	).Scan(&rates).Error
	if err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return nil, nil
	}
	return &rates[0], nil
}

func (r *repo) FindAsOf(ctx context.Context, db *gorm.DB, at time.Time) (*domain.GoldRate, error) {
	var rates []domain.GoldRate
	err := db.WithContext(ctx).Raw(
		`SELECT id, rate_22k, rate_24k, rate_18k, silver_rate,
		        effective_date, is_current, source, created_at
		 FROM gold_rates
		 WHERE effective_date <= ?
		 ORDER BY effective_date DESC, id DESC
		 LIMIT 1`,
		at,
	).Scan(&rates).Error
	if err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return nil, nil
	}
	return &rates[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, limit int) ([]domain.GoldRate, error) {
	var rates []domain.GoldRate
	err := db.WithContext(ctx).Raw(
		`SELECT id, rate_22k, rate_24k, rate_18k, silver_rate,
		        effective_date, is_current, source, created_at
		 FROM gold_rates
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	).Scan(&rates).Error
	if err != nil {
		return nil, err
	}
	return rates, nil
}
