package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/karat/internal/clock"
	"github.com/smallbiznis/karat/internal/config"
	"github.com/smallbiznis/karat/internal/liveevents"
	"github.com/smallbiznis/karat/internal/makingcharge/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Pricing   *config.PricingConfigHolder
	Repo      domain.Repository
	Publisher liveevents.Publisher `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	pricing   *config.PricingConfigHolder
	repo      domain.Repository
	publisher liveevents.Publisher
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("makingcharge.service"),
		clock:     p.Clock,
		pricing:   p.Pricing,
		repo:      p.Repo,
		publisher: p.Publisher,
	}
}

func (s *Service) PolicyFor(ctx context.Context, category string) (*domain.Policy, error) {
	return s.PolicyForTx(ctx, s.db, category)
}

func (s *Service) PolicyForTx(ctx context.Context, tx *gorm.DB, category string) (*domain.Policy, error) {
	row, err := s.repo.FindByCategory(ctx, tx, domain.CategoryKey(category))
	if err != nil {
		return nil, err
	}
	var rows []domain.CategoryMakingCharge
	if row != nil {
		rows = append(rows, *row)
	}
	return domain.NewPolicy(rows, s.pricing.Get().DefaultMakingChargePercent), nil
}

func (s *Service) List(ctx context.Context) ([]domain.CategoryMakingCharge, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Upsert(ctx context.Context, category string, req domain.UpsertRequest) (*domain.CategoryMakingCharge, error) {
	key := domain.CategoryKey(category)
	if key == "" {
		return nil, domain.ErrInvalidCategory
	}
	pct := req.MakingChargePercent
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return nil, domain.ErrInvalidPercent
	}
	floor := decimal.Zero
	if req.MinMakingCharge != nil {
		floor = *req.MinMakingCharge
	}
	if floor.IsNegative() {
		return nil, domain.ErrInvalidFloor
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = strings.TrimSpace(category)
	}

	now := s.clock.Now().UTC()
	row := &domain.CategoryMakingCharge{
		Category:            key,
		DisplayName:         name,
		MakingChargePercent: pct,
		MinMakingCharge:     floor,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.Upsert(ctx, s.db, row); err != nil {
		return nil, err
	}

	stored, err := s.repo.FindByCategory(ctx, s.db, key)
	if err != nil {
		return nil, err
	}

	s.log.Info("making charge policy updated",
		zap.String("category", key),
		zap.String("making_charge_percent", pct.String()),
		zap.String("min_making_charge", floor.String()),
	)
	if s.publisher != nil {
		s.publisher.Publish(ctx, liveevents.Event{
			Type:       liveevents.TypePolicyChanged,
			Category:   key,
			OccurredAt: now,
		})
	}
	return stored, nil
}
