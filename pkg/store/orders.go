package store

import (
	"time"

	"github.com/NovaByte/NovaVoice/internal/models"
	"github.com/NovaByte/NovaVoice/pkg/logger"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderContext customer/order facts used to personalize a call.
// Captured once at call start and never refreshed mid-call.
type OrderContext struct {
	OrderID       string  `json:"order_id"`
	CustomerName  string  `json:"customer_name"`
	ProductName   string  `json:"product_name"`
	ProductPrice  float64 `json:"product_price"`
	UpsellProduct string  `json:"upsell_product"`
	UpsellPrice   float64 `json:"upsell_price"`
	Phone         string  `json:"phone"`
}

// FallbackOrderContext returns the deterministic default context used
// when no order matches the caller. The call must always have something
// to talk about, so lookups never fail.
func FallbackOrderContext() OrderContext {
	return OrderContext{
		OrderID:       "mock-123",
		CustomerName:  "Valued Customer",
		ProductName:   "Samsung Galaxy S24",
		ProductPrice:  25999,
		UpsellProduct: "Premium Protection Plan",
		UpsellPrice:   1499,
	}
}

// OrderProvider resolves a caller phone number to an order context.
type OrderProvider struct {
	db    *gorm.DB
	cache *expirable.LRU[string, OrderContext]
}

// NewOrderProvider creates an order provider. A nil db means every
// lookup resolves to the fallback context.
func NewOrderProvider(db *gorm.DB) *OrderProvider {
	return &OrderProvider{
		db:    db,
		cache: expirable.NewLRU[string, OrderContext](1024, nil, 5*time.Minute),
	}
}

// Resolve looks up the caller's most recent order. On any lookup error
// or no-match it returns the fallback context instead of an error.
func (p *OrderProvider) Resolve(phone string) OrderContext {
	if octx, ok := p.cache.Get(phone); ok {
		return octx
	}

	octx := p.lookup(phone)
	octx.Phone = phone
	p.cache.Add(phone, octx)
	return octx
}

func (p *OrderProvider) lookup(phone string) OrderContext {
	if p.db == nil {
		logger.Debug("Order store not configured, using fallback context", zap.String("phone", phone))
		return FallbackOrderContext()
	}

	order, err := models.GetOrderByPhone(p.db, phone)
	if err != nil {
		logger.Warn("Order lookup failed, using fallback context",
			zap.String("phone", phone),
			zap.Error(err))
		return FallbackOrderContext()
	}

	return OrderContext{
		OrderID:       order.OrderID,
		CustomerName:  nonEmpty(order.CustomerName, "Customer"),
		ProductName:   nonEmpty(order.ProductName, "your order"),
		ProductPrice:  order.ProductPrice,
		UpsellProduct: nonEmpty(order.UpsellName, "a premium warranty"),
		UpsellPrice:   orDefault(order.UpsellPrice, 199),
	}
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func orDefault(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}
