package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/karat/internal/clock"
	"github.com/smallbiznis/karat/internal/goldrate/domain"
	"github.com/smallbiznis/karat/internal/liveevents"
	"github.com/smallbiznis/karat/internal/observability/metrics"
	"github.com/smallbiznis/karat/internal/pricingerr"
	dbpkg "github.com/smallbiznis/karat/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxSwapAttempts = 3
	rateLockKey     = "karat:goldrate:update"
	rateLockTTL     = 10 * time.Second
	defaultHistory  = 50
	maxHistory      = 500
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	Repo            domain.Repository
	Publisher       liveevents.Publisher     `optional:"true"`
	Locker          *redislock.Client        `optional:"true"`
	Metrics         *metrics.Metrics         `optional:"true"`
	CheckoutMetrics *metrics.CheckoutMetrics `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	repo            domain.Repository
	publisher       liveevents.Publisher
	locker          *redislock.Client
	metrics         *metrics.Metrics
	checkoutMetrics *metrics.CheckoutMetrics
}

func New(p Params) *Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("goldrate.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		repo:            p.Repo,
		publisher:       p.Publisher,
		locker:          p.Locker,
		metrics:         p.Metrics,
		checkoutMetrics: p.CheckoutMetrics,
	}
}

func (s *Service) GetCurrentRate(ctx context.Context) (*domain.GoldRate, error) {
	return s.CurrentRateTx(ctx, s.db)
}

func (s *Service) CurrentRateTx(ctx context.Context, tx *gorm.DB) (*domain.GoldRate, error) {
	rate, err := s.repo.FindCurrent(ctx, tx)
	if err != nil {
		return nil, err
	}
	if rate == nil {
		return nil, pricingerr.Configuration(pricingerr.ErrNoCurrentRate, "no gold rate is marked current")
	}
	return rate, nil
}

// CurrentRateForShareTx reads the current rate and holds it against
// demotion until tx finishes.
func (s *Service) CurrentRateForShareTx(ctx context.Context, tx *gorm.DB) (*domain.GoldRate, error) {
	rate, err := s.repo.FindCurrentForShare(ctx, tx)
	if err != nil {
		return nil, err
	}
	if rate == nil {
		return nil, pricingerr.Configuration(pricingerr.ErrNoCurrentRate, "no gold rate is marked current")
	}
	return rate, nil
}

func (s *Service) IsCurrentTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (bool, error) {
	rate, err := s.repo.FindCurrent(ctx, tx)
	if err != nil {
		return false, err
	}
	return rate != nil && rate.ID == id, nil
}

func (s *Service) GetRateAsOf(ctx context.Context, at time.Time) (*domain.GoldRate, error) {
	if at.IsZero() {
		return nil, domain.ErrInvalidEffectiveDate
	}
	return s.repo.FindAsOf(ctx, s.db, at.UTC())
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.GoldRate, error) {
	rateID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || rateID == 0 {
		return nil, domain.ErrInvalidID
	}
	rate, err := s.repo.FindByID(ctx, s.db, rateID)
	if err != nil {
		return nil, err
	}
	if rate == nil {
		return nil, domain.ErrNotFound
	}
	return rate, nil
}

func (s *Service) ListHistory(ctx context.Context, limit int) ([]domain.GoldRate, error) {
	if limit <= 0 {
		limit = defaultHistory
	}
	if limit > maxHistory {
		limit = maxHistory
	}
	return s.repo.List(ctx, s.db, limit)
}

func (s *Service) SetNewRate(ctx context.Context, req domain.SetRateRequest) (*domain.GoldRate, error) {
	entity, err := s.buildRate(req)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, rateLockKey, rateLockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			s.checkoutMetrics.IncRateUpdate("locked")
			return nil, pricingerr.Concurrency(domain.ErrUpdateInProgress, "another instance is updating the gold rate")
		}
		if err != nil {
			s.log.Warn("rate lock unavailable, relying on database constraints", zap.Error(err))
		} else {
			defer func() {
				if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
					s.log.Warn("failed to release rate lock", zap.Error(err))
				}
			}()
		}
	}

	var previous *domain.GoldRate
	for attempt := 1; ; attempt++ {
		entity.ID = s.genID.Generate()
		previous, err = s.swapCurrent(ctx, entity)
		if err == nil {
			break
		}
		retryable := dbpkg.IsSerializationErr(err) || dbpkg.IsDuplicateKeyErr(err)
		if retryable && attempt < maxSwapAttempts {
			s.log.Warn("retrying gold rate swap", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		s.checkoutMetrics.IncRateUpdate("failed")
		if retryable {
			return nil, pricingerr.Concurrency(err, "gold rate swap lost a race %d times", attempt)
		}
		return nil, err
	}

	s.checkoutMetrics.IncRateUpdate("committed")
	s.metrics.RecordRateChange(ctx, entity.Source)

	fields := []zap.Field{
		zap.String("rate_id", entity.ID.String()),
		zap.String("rate_22k", entity.Rate22K.String()),
		zap.String("rate_24k", entity.Rate24K.String()),
		zap.String("source", entity.Source),
	}
	if previous != nil {
		fields = append(fields, zap.String("previous_rate_id", previous.ID.String()))
	}
	s.log.Info("gold rate updated", fields...)

	s.publish(ctx, entity, previous)
	return entity, nil
}

// swapCurrent demotes the current row and inserts the new one in one
// transaction; the store never shows zero or two current rows.
func (s *Service) swapCurrent(ctx context.Context, entity *domain.GoldRate) (*domain.GoldRate, error) {
	var previous *domain.GoldRate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindCurrent(ctx, tx)
		if err != nil {
			return err
		}
		previous = current

		if _, err := s.repo.DemoteCurrent(ctx, tx); err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, entity); err != nil {
			return err
		}

		count, err := s.repo.CountCurrent(ctx, tx)
		if err != nil {
			return err
		}
		if count != 1 {
			return domain.ErrCurrentInvariant
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

func (s *Service) publish(ctx context.Context, entity, previous *domain.GoldRate) {
	if s.publisher == nil {
		return
	}
	event := liveevents.Event{
		Type:       liveevents.TypeRateChanged,
		RateID:     entity.ID.String(),
		Rate22K:    entity.Rate22K.String(),
		Rate24K:    entity.Rate24K.String(),
		Source:     entity.Source,
		OccurredAt: s.clock.Now(),
	}
	if previous != nil {
		event.PreviousRateID = previous.ID.String()
	}
	s.publisher.Publish(ctx, event)
}

func (s *Service) buildRate(req domain.SetRateRequest) (*domain.GoldRate, error) {
	if !req.Rate22K.IsPositive() || !req.Rate24K.IsPositive() {
		return nil, domain.ErrInvalidRate
	}

	rate18K, err := optionalRate(req.Rate18K)
	if err != nil {
		return nil, err
	}
	silver, err := optionalRate(req.SilverRate)
	if err != nil {
		return nil, err
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = domain.SourceManual
	}
	if len(source) > 64 {
		return nil, domain.ErrInvalidSource
	}

	now := s.clock.Now().UTC()
	effective := now
	if req.EffectiveDate != nil {
		effective = req.EffectiveDate.UTC()
		if effective.IsZero() || effective.After(now) {
			return nil, domain.ErrInvalidEffectiveDate
		}
	}

	return &domain.GoldRate{
		Rate22K:       req.Rate22K,
		Rate24K:       req.Rate24K,
		Rate18K:       rate18K,
		SilverRate:    silver,
		EffectiveDate: effective,
		IsCurrent:     true,
		Source:        source,
		CreatedAt:     now,
	}, nil
}

func optionalRate(v *decimal.Decimal) (decimal.NullDecimal, error) {
	if v == nil {
		return decimal.NullDecimal{}, nil
	}
	if !v.IsPositive() {
		return decimal.NullDecimal{}, domain.ErrInvalidRate
	}
	return decimal.NewNullDecimal(*v), nil
}
