package models

import (
	"errors"
	"time"
)

// ErrInvalidQuantity is returned for quantities below one.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Cart holds the pending line items of one account.
type Cart struct {
	ID        string     `json:"cartID"`
	AccountID string     `json:"userID"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
}

// CartItem is a product reference with a positive quantity.
type CartItem struct {
	ProductID string `json:"productID"`
	Quantity  int    `json:"quantity"`
}

// NewCart returns an empty cart owned by accountID.
func NewCart(id, accountID string) Cart {
	return Cart{ID: id, AccountID: accountID, Items: []CartItem{}}
}

// Add increments the quantity of productID, appending a new line when absent.
func (c *Cart) Add(productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			return nil
		}
	}
	c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: quantity})
	return nil
}

// Decrement lowers the quantity of productID by one. A line that would reach
// zero is removed; the cart itself always survives.
func (c *Cart) Decrement(productID string) bool {
	for i := range c.Items {
		if c.Items[i].ProductID != productID {
			continue
		}
		if c.Items[i].Quantity > 1 {
			c.Items[i].Quantity--
		} else {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		}
		return true
	}
	return false
}
