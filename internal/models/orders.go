package models

import (
	"time"

	"github.com/NovaByte/NovaVoice/pkg/constants"
	"gorm.io/gorm"
)

// Order customer order record, looked up by phone number at call start
type Order struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
	DeletedAt    *time.Time `json:"-" gorm:"index"`
	OrderID      string     `json:"orderId" gorm:"size:64;uniqueIndex;not null"` // business order ID
	Phone        string     `json:"phone" gorm:"size:20;index;not null"`         // customer phone, E.164
	CustomerName string     `json:"customerName" gorm:"size:128"`
	ProductName  string     `json:"productName" gorm:"size:256"`
	ProductPrice float64    `json:"productPrice" gorm:"default:0"` // UAH
	UpsellName   string     `json:"upsellName" gorm:"size:256"`
	UpsellPrice  float64    `json:"upsellPrice" gorm:"default:0"` // UAH
}

// TableName get tables
func (Order) TableName() string {
	return constants.TABLE_ORDERS
}

// CreateOrder creates an order record
func CreateOrder(db *gorm.DB, order *Order) error {
	return db.Create(order).Error
}

// GetOrderByPhone returns the most recent order for a phone number
func GetOrderByPhone(db *gorm.DB, phone string) (*Order, error) {
	var order Order
	err := db.Where("phone = ?", phone).Order("created_at DESC").First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}
