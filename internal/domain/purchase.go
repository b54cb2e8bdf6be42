package domain

import "time"

// Purchase records one successful buy of a product. Any purchase of a
// product makes the buyer eligible to review it.
type Purchase struct {
	ID        string    `json:"id"`
	Buyer     string    `json:"buyer"`
	ProductID int64     `json:"product_id"`
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}
