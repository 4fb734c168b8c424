package bootstrap

import (
	"errors"
	"fmt"

	"github.com/NovaByte/NovaVoice/internal/models"
	"github.com/NovaByte/NovaVoice/pkg/logger"
	"gorm.io/gorm"
)

type SeedService struct {
	db *gorm.DB
}

func (s *SeedService) SeedAll() error {
	return s.seedOrders()
}

// seedOrders inserts demo orders so calls have context to talk about
// in non-production setups.
func (s *SeedService) seedOrders() error {
	samples := []models.Order{
		{
			OrderID:      "ORD-2024-001",
			Phone:        "+380501234567",
			CustomerName: "Oksana Kovalenko",
			ProductName:  "Samsung Galaxy S24",
			ProductPrice: 25999,
			UpsellName:   "Premium Protection Plan",
			UpsellPrice:  1499,
		},
		{
			OrderID:      "ORD-2024-002",
			Phone:        "+380671112233",
			CustomerName: "Andrii Shevchenko",
			ProductName:  "iPhone 15 Pro",
			ProductPrice: 52999,
			UpsellName:   "AppleCare+",
			UpsellPrice:  3499,
		},
		{
			OrderID:      "ORD-2024-003",
			Phone:        "+380931234500",
			CustomerName: "Mariya Bondar",
			ProductName:  "Dyson V15 Detect",
			ProductPrice: 31999,
			UpsellName:   "Extended Warranty 3Y",
			UpsellPrice:  2199,
		},
	}

	for _, order := range samples {
		var existing models.Order
		result := s.db.Where("order_id = ?", order.OrderID).First(&existing)
		if result.Error == nil {
			continue
		}
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check existing order: %w", result.Error)
		}
		if err := models.CreateOrder(s.db, &order); err != nil {
			return fmt.Errorf("failed to seed order %s: %w", order.OrderID, err)
		}
	}

	logger.Info("Demo orders seeded")
	return nil
}
