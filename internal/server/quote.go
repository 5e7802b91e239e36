package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/karat/internal/catalog/domain"
	"github.com/smallbiznis/karat/internal/variation"
)

type quoteRequest struct {
	Selections map[string][]string `json:"selections"`
}

func (s *Server) QuoteProduct(c *gin.Context) {
	productID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || productID <= 0 {
		AbortWithError(c, catalogdomain.ErrInvalidID)
		return
	}
	c.Set("product_id", productID.String())

	var req quoteRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	selections, err := variation.ParseSelections(req.Selections)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.quoter.Quote(c.Request.Context(), productID, selections)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
