// Package repo: repository functions for finalized orders.
//
// Orders are append-only from the engine's point of view: one Order row
// plus its OrderItem rows are written in a single transaction when the
// customer record completes. Error semantics follow the rest of the
// package: ErrNotFound for missing records, raw gorm errors otherwise.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/QHanh/ChatbotHM/internal/domain"
)

// CreateOrder persists a finalized customer record as an Order with its
// items, in one transaction. The order ID is a randomly generated UUID.
func CreateOrder(ctx context.Context, db *gorm.DB, sessionID string, rec domain.CustomerRecord) (*domain.Order, error) {
	order := &domain.Order{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		CustomerName:  rec.Name,
		CustomerPhone: rec.Phone,
		Address:       rec.Address,
		CreatedAt:     time.Now().UTC(),
	}
	for _, line := range rec.Items {
		item := domain.OrderItem{
			ID:          uuid.NewString(),
			OrderID:     order.ID,
			ProductName: line.ProductName,
			Properties:  line.Properties,
			Quantity:    line.Quantity,
		}
		if line.Matched != nil {
			item.ProductCode = line.Matched.ProductCode
			item.UnitPrice = line.Matched.LifecarePrice
		}
		order.Items = append(order.Items, item)
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder fetches one order with its items, or ErrNotFound.
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrdersBySession returns a session's orders, most recent first.
func ListOrdersBySession(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Preload("Items").
		Where("session_id = ?", sessionID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// OrderSink adapts the repository to the engine's persistence contract.
type OrderSink struct {
	db *gorm.DB
}

// NewOrderSink wraps db for the engine.
func NewOrderSink(db *gorm.DB) *OrderSink { return &OrderSink{db: db} }

// SaveOrder implements engine.OrderSink.
func (s *OrderSink) SaveOrder(ctx context.Context, sessionID string, rec domain.CustomerRecord) error {
	_, err := CreateOrder(ctx, s.db, sessionID, rec)
	return err
}
