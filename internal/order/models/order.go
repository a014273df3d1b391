// Package models defines dispensary orders as mirrored from the partner
// network. The partner is the system of record for fulfilment; local rows
// exist so the storefront can list history without a partner round trip.
package models

import (
	"fmt"
	"time"

	id "greengate/pkg/domain"
)

// Status values mirror the partner's order lifecycle verbatim.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// Item is one strain line on an order. UnitPrice is in the partner's minor
// currency units.
type Item struct {
	StrainID   string `json:"strainId"`
	StrainName string `json:"strainName,omitempty"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unitPrice,omitempty"`
}

// Order is a locally persisted mirror of a partner order.
type Order struct {
	ID             id.OrderID
	UserID         id.UserID
	PartnerOrderID string
	Status         Status
	PaymentStatus  string
	TotalAmount    int64
	Items          []Item
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ValidateItems rejects empty carts and nonsensical quantities before any
// partner call is made.
func ValidateItems(items []Item) error {
	if len(items) == 0 {
		return fmt.Errorf("order has no items")
	}
	for i, item := range items {
		if item.StrainID == "" {
			return fmt.Errorf("item %d: missing strain id", i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("item %d: quantity must be positive", i)
		}
	}
	return nil
}
