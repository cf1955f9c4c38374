package models

import "time"

// Order is a paper order placed by the tool server. Fills immediately.
type Order struct {
	OrderID    string    `gorm:"column:order_id;primaryKey" json:"order_id"`
	WorkflowID string    `gorm:"column:workflow_id" json:"workflow_id"`
	Status     string    `gorm:"column:status" json:"status"`
	Symbol     string    `gorm:"column:symbol" json:"symbol"`
	Side       string    `gorm:"column:side" json:"side"`
	Qty        float64   `gorm:"column:qty" json:"qty"`
	FillPrice  float64   `gorm:"column:fill_price" json:"fill_price"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Order) TableName() string {
	return "orders"
}
