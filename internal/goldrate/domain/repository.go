package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rate *GoldRate) error
	// DemoteCurrent clears is_current on the current row and returns how many rows changed.
	DemoteCurrent(ctx context.Context, db *gorm.DB) (int64, error)
	FindCurrent(ctx context.Context, db *gorm.DB) (*GoldRate, error)
	// FindCurrentForShare holds a shared lock on the current row until db's
	// transaction ends, so a concurrent demotion waits for it.
	FindCurrentForShare(ctx context.Context, db *gorm.DB) (*GoldRate, error)
	CountCurrent(ctx context.Context, db *gorm.DB) (int64, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*GoldRate, error)
	FindAsOf(ctx context.Context, db *gorm.DB, at time.Time) (*GoldRate, error)
	List(ctx context.Context, db *gorm.DB, limit int) ([]GoldRate, error)
}
