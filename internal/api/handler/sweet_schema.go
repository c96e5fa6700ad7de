package handler

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type createSweetRequest struct {
	Name     string           `json:"name" validate:"required"`
	Category string           `json:"category" validate:"required"`
	Price    *decimal.Decimal `json:"price" validate:"required" swaggertype:"number"`
	Quantity *int             `json:"quantity" validate:"required,min=0"`
}

// updateSweetRequest is a partial update; absent fields are left untouched.
type updateSweetRequest struct {
	Name     *string          `json:"name,omitempty"`
	Category *string          `json:"category,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty" swaggertype:"number"`
	Quantity *int             `json:"quantity,omitempty" validate:"omitempty,min=0"`
}

type stockRequest struct {
	Quantity *int `json:"quantity,omitempty"`
}

type sweetResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Category  string      `json:"category"`
	Price     json.Number `json:"price" swaggertype:"number"`
	Quantity  int         `json:"quantity"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
