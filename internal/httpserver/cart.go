package httpserver

import (
	"net/http"

	"dronefood-storefront/internal/domain"
	"github.com/gin-gonic/gin"
)

type cartResponse struct {
	Items        domain.Cart     `json:"items"`
	Total        int64           `json:"total"`
	Count        int             `json:"count"`
	RestaurantID string          `json:"restaurantId,omitempty"`
	Pending      *domain.Product `json:"pending,omitempty"`
}

type conflictRequest struct {
	Confirm *bool `json:"confirm" binding:"required"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func cartView(sess *browserSession) cartResponse {
	m := sess.cart
	return cartResponse{
		Items:        m.Items(),
		Total:        m.Total(),
		Count:        m.Count(),
		RestaurantID: m.RestaurantID(),
		Pending:      m.Pending(),
	}
}

func getCartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, cartView(sessionFrom(c)))
	}
}

func addItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var p domain.Product
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
			return
		}
		sess := sessionFrom(c)
		res, err := sess.cart.AddItem(c.Request.Context(), p)
		if err != nil {
			writeError(c, err)
			return
		}
		if res.Conflict {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "cart holds dishes from another restaurant",
				"pending": res.Pending,
				"cart":    cartView(sess),
			})
			return
		}
		c.JSON(http.StatusOK, cartView(sess))
	}
}

func resolveConflictHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req conflictRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "confirm is required"})
			return
		}
		sess := sessionFrom(c)
		if err := sess.cart.ResolveConflict(c.Request.Context(), *req.Confirm); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, cartView(sess))
	}
}

func setQuantityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req quantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
			return
		}
		if req.Quantity <= 0 {
			writeError(c, domain.ErrInvalidQuantity)
			return
		}
		sess := sessionFrom(c)
		if err := sess.cart.SetQuantity(c.Request.Context(), c.Param("itemId"), req.Quantity); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, cartView(sess))
	}
}

func removeItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)
		if err := sess.cart.RemoveItem(c.Request.Context(), c.Param("itemId")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, cartView(sess))
	}
}

func clearCartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)
		if err := sess.cart.Clear(c.Request.Context()); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, cartView(sess))
	}
}
