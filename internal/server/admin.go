package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/karat/internal/catalog/domain"
	makingchargedomain "github.com/smallbiznis/karat/internal/makingcharge/domain"
	"go.uber.org/zap"
)

type upsertMakingChargeRequest struct {
	DisplayName         string           `json:"display_name"`
	MakingChargePercent decimal.Decimal  `json:"making_charge_percent"`
	MinMakingCharge     *decimal.Decimal `json:"min_making_charge"`
}

type updateVariationRequest struct {
	IsAvailable   *bool `json:"is_available"`
	StockQuantity *int  `json:"stock_quantity"`
}

func (s *Server) ListMakingCharges(c *gin.Context) {
	resp, err := s.policySvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpsertMakingCharge(c *gin.Context) {
	var req upsertMakingChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.policySvc.Upsert(c.Request.Context(), c.Param("category"), makingchargedomain.UpsertRequest{
		DisplayName:         strings.TrimSpace(req.DisplayName),
		MakingChargePercent: req.MakingChargePercent,
		MinMakingCharge:     req.MinMakingCharge,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("making charge policy updated",
		zap.String("category", resp.Category),
		zap.String("making_charge_percent", resp.MakingChargePercent.String()),
	)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateVariation(c *gin.Context) {
	var req updateVariationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.catalogSvc.UpdateVariation(c.Request.Context(), id, catalogdomain.UpdateVariationRequest{
		IsAvailable:   req.IsAvailable,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
