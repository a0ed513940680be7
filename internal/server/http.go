package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"checkout-engine/internal/database"
	"checkout-engine/internal/domain"
	"checkout-engine/internal/service"
)

type Handler struct {
	checkout service.CheckoutService
	health   database.Service
	log      zerolog.Logger
}

func NewHandler(checkout service.CheckoutService, health database.Service, log zerolog.Logger) *Handler {
	return &Handler{checkout: checkout, health: health, log: log}
}

// API builds the gin engine for the checkout surface.
func API(h *Handler, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = allowedOrigins
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/checkout", h.StartCheckout)
		v1.POST("/payments/verify", h.VerifyPayment)
		v1.POST("/payments/events", h.RecordEvent)
		v1.GET("/orders/:orderNumber", h.GetOrder)
	}
	return r
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.health.Health())
}

func (h *Handler) StartCheckout(c *gin.Context) {
	var req service.StartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.checkout.StartCheckout(c.Request.Context(), req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type verifyPaymentBody struct {
	OrderID          string `json:"order_id" binding:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" binding:"required"`
	GatewayOrderID   string `json:"gateway_order_id" binding:"required"`
	Signature        string `json:"signature" binding:"required"`
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	var body verifyPaymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	orderID, err := uuid.Parse(body.OrderID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	order, err := h.checkout.VerifyPayment(c.Request.Context(), service.VerifyPaymentRequest{
		OrderID:          orderID,
		GatewayPaymentID: body.GatewayPaymentID,
		GatewayOrderID:   body.GatewayOrderID,
		Signature:        body.Signature,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderView(order))
}

type recordEventBody struct {
	OrderID string `json:"order_id" binding:"required"`
	Event   string `json:"event" binding:"required"`
	Reason  string `json:"reason"`
}

func (h *Handler) RecordEvent(c *gin.Context) {
	var body recordEventBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	orderID, err := uuid.Parse(body.OrderID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	if err := h.checkout.RecordEvent(c.Request.Context(), orderID, body.Event, body.Reason); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"recorded": true})
}

func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.checkout.FindOrder(c.Request.Context(), c.Param("orderNumber"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderView(order))
}

// renderError maps the domain error taxonomy onto HTTP. A signature mismatch
// stays deliberately vague: the response never says which part of the check
// failed.
func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUnknownPlan),
		errors.Is(err, domain.ErrUnknownAddOn):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSubjectNotPayable):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrGatewayUnavailable):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error":     "payment gateway unavailable, please retry",
			"retryable": true,
		})
	case errors.Is(err, domain.ErrSignatureMismatch):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": "payment verification failed, contact support",
		})
	case errors.Is(err, domain.ErrOrderNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, domain.ErrInvalidTransition):
		h.log.Error().Err(err).Msg("invalid order transition")
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "order is not in a payable state"})
	default:
		h.log.Error().Err(err).Msg("internal error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type orderResponse struct {
	OrderNumber    string             `json:"order_number"`
	Subject        domain.SubjectRef  `json:"subject"`
	Status         domain.OrderStatus `json:"status"`
	GatewayOrderID string             `json:"gateway_order_id,omitempty"`
	Quote          quoteResponse      `json:"quote"`
	History        []historyEntry     `json:"history"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

type quoteResponse struct {
	PlanID      string   `json:"plan_id"`
	AddOnIDs    []string `json:"add_on_ids"`
	BasePrice   int64    `json:"base_price"`
	AddOnAmount int64    `json:"add_on_amount"`
	TaxAmount   int64    `json:"tax_amount"`
	Total       int64    `json:"total"`
	Currency    string   `json:"currency"`
}

type historyEntry struct {
	Status    domain.OrderStatus `json:"status"`
	Reason    string             `json:"reason"`
	CreatedAt time.Time          `json:"created_at"`
}

func orderView(order *domain.Order) orderResponse {
	history := make([]historyEntry, 0, len(order.History))
	for _, ev := range order.History {
		history = append(history, historyEntry{Status: ev.Status, Reason: ev.Reason, CreatedAt: ev.CreatedAt})
	}
	return orderResponse{
		OrderNumber:    order.OrderNumber,
		Subject:        order.Subject,
		Status:         order.Status,
		GatewayOrderID: order.GatewayOrderID,
		Quote: quoteResponse{
			PlanID:      order.Quote.PlanID,
			AddOnIDs:    order.Quote.AddOnIDs,
			BasePrice:   order.Quote.BasePrice,
			AddOnAmount: order.Quote.AddOnAmount,
			TaxAmount:   order.Quote.TaxAmount,
			Total:       order.Quote.Total,
			Currency:    order.Quote.Currency,
		},
		History:   history,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
}
