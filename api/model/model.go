/*
Copyright 2025 Surgecart Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package model

import (
	"github.com/shopspring/decimal"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/surgecart/surge"
)

// CreateSeckillOrder is the request body for placing a flash-sale order.
// The buyer comes from the verified credential, never from the body.
type CreateSeckillOrder struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (o *CreateSeckillOrder) ValidateCreateSeckillOrder() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.ProductID, validation.Required),
		validation.Field(&o.Quantity, validation.Required, validation.Min(1), validation.Max(100)),
	)
}

// PutStockSnapshot seeds the cached sale catalog entry for a product.
type PutStockSnapshot struct {
	ProductID string `json:"product_id"`
	Available int    `json:"available"`
	UnitPrice string `json:"unit_price"`
}

func (s *PutStockSnapshot) ValidatePutStockSnapshot() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.ProductID, validation.Required),
		validation.Field(&s.Available, validation.Min(0)),
		validation.Field(&s.UnitPrice, validation.Required, validation.By(validAmount)),
	)
}

func validAmount(value interface{}) error {
	raw, _ := value.(string)
	_, err := decimal.NewFromString(raw)
	return err
}

// ToStockSnapshot converts the request into the cached representation.
func (s *PutStockSnapshot) ToStockSnapshot() (*surge.StockSnapshot, error) {
	price, err := decimal.NewFromString(s.UnitPrice)
	if err != nil {
		return nil, err
	}
	return &surge.StockSnapshot{
		ProductID: s.ProductID,
		Available: s.Available,
		UnitPrice: price,
	}, nil
}
