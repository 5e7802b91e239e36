package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	goldratedomain "github.com/smallbiznis/karat/internal/goldrate/domain"
	"go.uber.org/zap"
)

type setRateRequest struct {
	Rate22K       decimal.Decimal  `json:"rate_22k"`
	Rate24K       decimal.Decimal  `json:"rate_24k"`
	Rate18K       *decimal.Decimal `json:"rate_18k"`
	SilverRate    *decimal.Decimal `json:"silver_rate"`
	EffectiveDate *time.Time       `json:"effective_date"`
	Source        string           `json:"source"`
}

func (s *Server) GetCurrentRate(c *gin.Context) {
	resp, err := s.rateSvc.GetCurrentRate(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ListRates answers the rate effective at as_of when given, otherwise the
// newest rates first.
func (s *Server) ListRates(c *gin.Context) {
	asOf, err := parseOptionalTime(c.Query("as_of"), true)
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "invalid as_of"))
		return
	}
	if asOf != nil {
		resp, err := s.rateSvc.GetRateAsOf(c.Request.Context(), *asOf)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if resp == nil {
			AbortWithError(c, ErrNotFound)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": resp})
		return
	}

	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil || (limit != nil && *limit < 0) {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}
	n := 0
	if limit != nil {
		n = *limit
	}

	resp, err := s.rateSvc.ListHistory(c.Request.Context(), n)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRateByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.rateSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetRate(c *gin.Context) {
	var req setRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.rateSvc.SetNewRate(c.Request.Context(), goldratedomain.SetRateRequest{
		Rate22K:       req.Rate22K,
		Rate24K:       req.Rate24K,
		Rate18K:       req.Rate18K,
		SilverRate:    req.SilverRate,
		EffectiveDate: req.EffectiveDate,
		Source:        strings.TrimSpace(req.Source),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("gold rate replaced",
		zap.String("rate_id", resp.ID.String()),
		zap.String("source", resp.Source),
	)

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}
