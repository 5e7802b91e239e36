package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/karat/internal/catalog/domain"
	"github.com/smallbiznis/karat/internal/clock"
	"github.com/smallbiznis/karat/internal/liveevents"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Repo      domain.Repository
	Publisher liveevents.Publisher `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      domain.Repository
	publisher liveevents.Publisher
}

func New(p Params) *Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("catalog.service"),
		clock:     p.Clock,
		repo:      p.Repo,
		publisher: p.Publisher,
	}
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	productID, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.ProductTx(ctx, s.db, productID)
}

func (s *Service) ProductTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	product, err := s.repo.FindProduct(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	if !product.Active {
		return nil, domain.ErrProductInactive
	}
	return product, nil
}

func (s *Service) ListVariations(ctx context.Context, productID snowflake.ID) ([]domain.ProductVariation, error) {
	return s.VariationsTx(ctx, s.db, productID)
}

func (s *Service) VariationsTx(ctx context.Context, tx *gorm.DB, productID snowflake.ID) ([]domain.ProductVariation, error) {
	return s.repo.ListVariations(ctx, tx, productID)
}

// UpdateVariation changes stock or availability and announces the change so
// cached quotes for the product are dropped.
func (s *Service) UpdateVariation(ctx context.Context, id string, req domain.UpdateVariationRequest) (*domain.ProductVariation, error) {
	variationID, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	if req.IsAvailable == nil && req.StockQuantity == nil {
		return nil, domain.ErrEmptyUpdate
	}
	if req.StockQuantity != nil && *req.StockQuantity < 0 {
		return nil, domain.ErrInvalidStock
	}

	var updated *domain.ProductVariation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := s.repo.FindVariation(ctx, tx, variationID)
		if err != nil {
			return err
		}
		if v == nil {
			return domain.ErrVariationNotFound
		}
		if req.IsAvailable != nil {
			v.IsAvailable = *req.IsAvailable
		}
		if req.StockQuantity != nil {
			v.StockQuantity = *req.StockQuantity
		}
		v.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.UpdateVariationStock(ctx, tx, v); err != nil {
			return err
		}
		updated = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("variation updated",
		zap.String("variation_id", updated.ID.String()),
		zap.String("product_id", updated.ProductID.String()),
		zap.Bool("is_available", updated.IsAvailable),
		zap.Int("stock_quantity", updated.StockQuantity),
	)
	if s.publisher != nil {
		s.publisher.Publish(ctx, liveevents.Event{
			Type:       liveevents.TypeVariationChanged,
			ProductID:  updated.ProductID.String(),
			OccurredAt: s.clock.Now(),
		})
	}
	return updated, nil
}

func ParseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
