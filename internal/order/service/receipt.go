package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/karat/internal/order/domain"
	"github.com/smallbiznis/karat/internal/providers/pdf"
)

// Receipt renders the order from its stored snapshot only.
func (s *Service) Receipt(ctx context.Context, id string) ([]byte, error) {
	if s.receipts == nil {
		return nil, domain.ErrReceiptsDisabled
	}
	view, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := receiptData(view)
	if err != nil {
		return nil, err
	}
	r, err := s.receipts.GenerateReceipt(ctx, data)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func receiptData(view *domain.OrderView) (pdf.ReceiptData, error) {
	order := view.Order
	currency := order.Currency
	data := pdf.ReceiptData{
		OrderNumber: order.OrderNumber,
		PlacedAt:    order.CreatedAt.UTC().Format("2006-01-02 15:04 MST"),
		CustomerRef: order.CustomerRef,
		RateID:      order.GoldRateID.String(),
		GSTPercent:  order.GSTPercent.String(),
		Subtotal:    money(currency, order.Subtotal),
		GST:         money(currency, order.GST),
		Total:       money(currency, order.Total),
	}
	for _, item := range view.Items {
		var selected []domain.SnapshotVariation
		if len(item.SelectedVariations) > 0 {
			if err := json.Unmarshal(item.SelectedVariations, &selected); err != nil {
				return pdf.ReceiptData{}, fmt.Errorf("item %s variations: %w", item.ID, err)
			}
		}
		labels := make([]string, 0, len(selected))
		for _, v := range selected {
			labels = append(labels, v.Label)
		}
		data.Items = append(data.Items, pdf.ReceiptItem{
			Description:   fmt.Sprintf("%s (%s)", item.ProductName, item.SKU),
			Details:       strings.Join(labels, ", "),
			Weight:        item.WeightGrams.StringFixed(3),
			RateApplied:   item.GoldRateApplied.String(),
			MakingCharges: money(currency, item.MakingCharges),
			Qty:           item.Quantity,
			UnitPrice:     money(currency, item.UnitPrice),
			Amount:        money(currency, item.TotalPrice),
		})
	}
	return data, nil
}

func money(currency string, v int64) string {
	return currency + " " + decimal.NewFromInt(v).StringFixed(0)
}
