package toolsrv

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/tradeops/arbiter/internal/models"
)

// gormOrderStore persists orders in Postgres.
type gormOrderStore struct {
	db *gorm.DB
}

func NewGormOrderStore(db *gorm.DB) OrderStore {
	return &gormOrderStore{db: db}
}

func (s *gormOrderStore) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// MemOrderStore keeps orders in memory for local development and tests.
type MemOrderStore struct {
	mu     sync.Mutex
	orders []*models.Order
}

func NewMemOrderStore() *MemOrderStore {
	return &MemOrderStore{}
}

func (s *MemOrderStore) CreateOrder(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	copied := *order
	s.orders = append(s.orders, &copied)
	s.mu.Unlock()
	return nil
}

// Orders returns a snapshot of all placed orders.
func (s *MemOrderStore) Orders() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	return out
}
