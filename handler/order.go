package handler

import (
	"errors"
	"net/http"

	"github.com/berthwatch/backend/service"
	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// SaveOrder validates and stores a delivery order
func (h *OrderHandler) SaveOrder(c *gin.Context) {
	var in service.OrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if _, err := h.orders.Save(c.Request.Context(), in); err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Order saved successfully"})
}

// LatestOrders returns the newest order date per colour
func (h *OrderHandler) LatestOrders(c *gin.Context) {
	latest, err := h.orders.LatestByColour(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, latest)
}
