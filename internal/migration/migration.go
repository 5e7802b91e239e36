package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	catalogdomain "github.com/smallbiznis/karat/internal/catalog/domain"
	goldratedomain "github.com/smallbiznis/karat/internal/goldrate/domain"
	makingchargedomain "github.com/smallbiznis/karat/internal/makingcharge/domain"
	orderdomain "github.com/smallbiznis/karat/internal/order/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded postgres schema, including the
// single-current-rate index and the order_items immutability trigger.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the tables from the gorm models for dialects without
// SQL migrations. The database-level guards are not installed; the gorm
// hooks and the rate swap transaction still apply.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	return db.AutoMigrate(
		&goldratedomain.GoldRate{},
		&makingchargedomain.CategoryMakingCharge{},
		&catalogdomain.Product{},
		&catalogdomain.ProductVariation{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
	)
}
