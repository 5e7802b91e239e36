package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	catalogdomain "github.com/smallbiznis/karat/internal/catalog/domain"
	"github.com/smallbiznis/karat/internal/clock"
	"github.com/smallbiznis/karat/internal/config"
	goldratedomain "github.com/smallbiznis/karat/internal/goldrate/domain"
	"github.com/smallbiznis/karat/internal/observability/metrics"
	"github.com/smallbiznis/karat/internal/order/domain"
	"github.com/smallbiznis/karat/internal/pricing"
	"github.com/smallbiznis/karat/internal/pricingerr"
	"github.com/smallbiznis/karat/internal/providers/pdf"
	"github.com/smallbiznis/karat/internal/variation"
	dbpkg "github.com/smallbiznis/karat/pkg/db"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Rates    goldratedomain.Service
	RatesTx  goldratedomain.TxReader
	Engine   *pricing.Engine
	Pricing  *config.PricingConfigHolder
	Receipts pdf.Provider             `optional:"true"`
	Metrics  *metrics.CheckoutMetrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	rates    goldratedomain.Service
	ratesTx  goldratedomain.TxReader
	engine   *pricing.Engine
	pricing  *config.PricingConfigHolder
	receipts pdf.Provider
	metrics  *metrics.CheckoutMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("order.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		rates:    p.Rates,
		ratesTx:  p.RatesTx,
		engine:   p.Engine,
		pricing:  p.Pricing,
		receipts: p.Receipts,
		metrics:  p.Metrics,
	}
}

type cartLine struct {
	productID  snowflake.ID
	quantity   int
	selections variation.Selections
}

// Checkout prices every line against the rate current at commit time and
// persists the order with its frozen items in one transaction.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	started := time.Now()
	ctx, span := otel.Tracer("karat/order").Start(ctx, "order.checkout")
	defer span.End()

	result, outcome, err := s.checkout(ctx, req)

	s.metrics.IncOutcome(outcome)
	s.metrics.ObserveDuration(time.Since(started))
	span.SetAttributes(
		attribute.String("checkout.outcome", outcome),
		attribute.Int("checkout.lines", len(req.Items)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	if result.RateChanged {
		s.metrics.IncRateDrift()
	}
	span.SetAttributes(attribute.String("order.id", result.Order.ID.String()))
	return result, nil
}

func (s *Service) checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, string, error) {
	key, lines, err := s.parseRequest(req)
	if err != nil {
		return nil, outcomeFor(err), err
	}

	if existing, err := s.replay(ctx, key); err != nil {
		return nil, metrics.CheckoutOutcomeFailed, err
	} else if existing != nil {
		existing.RateChanged = quotedRateDiffers(req.QuotedRateID, existing.Order.GoldRateID)
		return existing, metrics.CheckoutOutcomeReplayed, nil
	}

	var (
		order    *domain.Order
		items    []domain.OrderItem
		rateRead bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rate, err := s.ratesTx.CurrentRateForShareTx(ctx, tx)
		if err != nil {
			return err
		}
		rateRead = true

		order, items, err = s.buildSnapshot(ctx, tx, key, strings.TrimSpace(req.CustomerRef), rate, lines)
		if err != nil {
			return err
		}
		if err := s.repo.InsertOrder(ctx, tx, order); err != nil {
			return err
		}
		if err := s.repo.InsertItems(ctx, tx, items); err != nil {
			return err
		}

		stillCurrent, err := s.ratesTx.IsCurrentTx(ctx, tx, rate.ID)
		if err != nil {
			return err
		}
		if !stillCurrent {
			return pricingerr.Concurrency(pricingerr.ErrRateChanged, "rate %s was replaced before commit", rate.ID)
		}
		return nil
	})
	if err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			// A concurrent request with the same key committed first.
			if existing, lookupErr := s.replay(ctx, key); lookupErr == nil && existing != nil {
				existing.RateChanged = quotedRateDiffers(req.QuotedRateID, existing.Order.GoldRateID)
				return existing, metrics.CheckoutOutcomeReplayed, nil
			}
		}
		err = classifyCheckoutErr(err, rateRead)
		s.log.Warn("checkout rolled back",
			zap.String("idempotency_key", key),
			zap.Bool("retryable", pricingerr.IsRetryable(err)),
			zap.Error(err),
		)
		return nil, outcomeFor(err), err
	}

	rateChanged := quotedRateDiffers(req.QuotedRateID, order.GoldRateID)
	s.log.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("gold_rate_id", order.GoldRateID.String()),
		zap.Bool("rate_changed", rateChanged),
		zap.Int64("total", order.Total),
		zap.Int("items", len(items)),
	)
	return &domain.CheckoutResult{
		Order:       *order,
		Items:       items,
		RateChanged: rateChanged,
	}, metrics.CheckoutOutcomeCommitted, nil
}

func (s *Service) buildSnapshot(ctx context.Context, tx *gorm.DB, key, customerRef string, rate *goldratedomain.GoldRate, lines []cartLine) (*domain.Order, []domain.OrderItem, error) {
	now := s.clock.Now().UTC()
	cfg := s.pricing.Get()
	order := &domain.Order{
		ID:             s.genID.Generate(),
		OrderNumber:    newOrderNumber(now),
		IdempotencyKey: key,
		CustomerRef:    customerRef,
		GoldRateID:     rate.ID,
		Currency:       cfg.Currency,
		GSTPercent:     cfg.GSTPercent,
		Status:         domain.StatusPlaced,
		CreatedAt:      now,
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		quote, err := s.engine.PriceTx(ctx, tx, rate, line.productID, line.selections)
		if err != nil {
			return nil, nil, err
		}
		snapshot, err := snapshotVariations(quote.Variations)
		if err != nil {
			return nil, nil, err
		}

		price := quote.Price
		unit := price.Total.IntPart()
		qty := int64(line.quantity)
		items = append(items, domain.OrderItem{
			ID:                  s.genID.Generate(),
			OrderID:             order.ID,
			ProductID:           quote.ProductID,
			SKU:                 quote.Product.SKU,
			ProductName:         quote.Product.Name,
			MetalType:           string(quote.Product.MetalType),
			Quantity:            line.quantity,
			GoldRateID:          rate.ID,
			GoldRateApplied:     price.GoldRateApplied,
			WeightGrams:         price.EffectiveWeight,
			WeightAdjustment:    quote.Variations.WeightDelta,
			MakingChargePercent: price.MakingChargePercent,
			GoldValue:           price.GoldValue.IntPart(),
			MakingCharges:       price.MakingCharges.IntPart(),
			PriceAdjustment:     price.PriceDelta,
			Subtotal:            price.Subtotal.IntPart(),
			GST:                 price.GST.IntPart(),
			UnitPrice:           unit,
			TotalPrice:          unit * qty,
			SelectedVariations:  snapshot,
			CreatedAt:           now,
		})
		order.Subtotal += price.Subtotal.IntPart() * qty
		order.GST += price.GST.IntPart() * qty
		order.Total += unit * qty
	}
	return order, items, nil
}

func (s *Service) replay(ctx context.Context, key string) (*domain.CheckoutResult, error) {
	existing, err := s.repo.FindByIdempotencyKey(ctx, s.db, key)
	if err != nil || existing == nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, s.db, existing.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info("checkout replayed", zap.String("order_id", existing.ID.String()), zap.String("idempotency_key", key))
	return &domain.CheckoutResult{Order: *existing, Items: items, Replayed: true}, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.OrderView, error) {
	orderID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	items, err := s.repo.ListItems(ctx, s.db, order.ID)
	if err != nil {
		return nil, err
	}
	return &domain.OrderView{Order: *order, Items: items}, nil
}

func (s *Service) RateForOrder(ctx context.Context, id string) (*goldratedomain.GoldRate, error) {
	view, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.rates.GetByID(ctx, view.Order.GoldRateID.String())
}

func (s *Service) parseRequest(req domain.CheckoutRequest) (string, []cartLine, error) {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}
	if len(key) > domain.MaxKeyLength {
		return "", nil, domain.ErrInvalidKey
	}
	if len(strings.TrimSpace(req.CustomerRef)) > domain.MaxCustomerRef {
		return "", nil, domain.ErrInvalidCustomerRef
	}
	if len(req.Items) == 0 {
		return "", nil, domain.ErrEmptyCart
	}
	if len(req.Items) > domain.MaxCartItems {
		return "", nil, domain.ErrTooManyItems
	}

	lines := make([]cartLine, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := parseID(item.ProductID)
		if err != nil {
			return "", nil, domain.ErrInvalidProduct
		}
		if item.Quantity < 1 || item.Quantity > domain.MaxQuantity {
			return "", nil, domain.ErrInvalidQuantity
		}
		selections, err := variation.ParseSelections(item.Selections)
		if err != nil {
			return "", nil, err
		}
		lines = append(lines, cartLine{productID: productID, quantity: item.Quantity, selections: selections})
	}
	return key, lines, nil
}

func snapshotVariations(res *variation.Result) (datatypes.JSON, error) {
	selected := make([]domain.SnapshotVariation, 0)
	if res != nil {
		for _, v := range res.Selected {
			selected = append(selected, domain.SnapshotVariation{
				ID:               v.ID.String(),
				Group:            v.Group,
				Type:             string(v.Type),
				Label:            v.Label,
				PriceAdjustment:  v.PriceAdjustment.String(),
				WeightAdjustment: v.WeightAdjustment.String(),
				Defaulted:        v.Defaulted,
			})
		}
	}
	raw, err := json.Marshal(selected)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// classifyCheckoutErr keeps engine errors as they are. Anything else that
// fails after the rate was read becomes retryable: nothing was committed.
func classifyCheckoutErr(err error, rateRead bool) error {
	switch {
	case pricingerr.IsConfiguration(err), pricingerr.IsSelection(err), pricingerr.IsConcurrency(err):
		return err
	case isValidationErr(err):
		return err
	case rateRead:
		return pricingerr.Concurrency(pricingerr.ErrCheckoutAborted, "checkout aborted: %v", err)
	default:
		return err
	}
}

func outcomeFor(err error) string {
	switch {
	case pricingerr.IsSelection(err), isValidationErr(err):
		return metrics.CheckoutOutcomeSelection
	case pricingerr.IsConfiguration(err):
		return metrics.CheckoutOutcomeConfiguration
	case pricingerr.IsConcurrency(err):
		return metrics.CheckoutOutcomeConflict
	default:
		return metrics.CheckoutOutcomeFailed
	}
}

func isValidationErr(err error) bool {
	for _, target := range []error{
		domain.ErrEmptyCart, domain.ErrTooManyItems, domain.ErrInvalidQuantity,
		domain.ErrInvalidProduct, domain.ErrInvalidKey, domain.ErrInvalidCustomerRef,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return isCatalogLookupErr(err)
}

func isCatalogLookupErr(err error) bool {
	return errors.Is(err, catalogdomain.ErrProductNotFound) || errors.Is(err, catalogdomain.ErrProductInactive)
}

func quotedRateDiffers(quoted string, committed snowflake.ID) bool {
	quoted = strings.TrimSpace(quoted)
	return quoted != "" && quoted != committed.String()
}

func newOrderNumber(now time.Time) string {
	return "ORD-" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
