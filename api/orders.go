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

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/surgecart/surge/api/middleware"
	model2 "github.com/surgecart/surge/api/model"
	"github.com/surgecart/surge/internal/apierror"
)

// PlaceSeckillOrder handles flash-sale order placement for an admitted
// request. An anonymous request cannot buy; the gate already admitted it on
// IP alone, but an order needs an owner.
func (a Api) PlaceSeckillOrder(c *gin.Context) {
	var req model2.CreateSeckillOrder
	if err := c.BindJSON(&req); err != nil {
		return
	}
	if err := req.ValidateCreateSeckillOrder(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "A verified identity is required to place an order"})
		return
	}

	ord, err := a.surge.PlaceSeckillOrder(c.Request.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, ord)
}

// GetOrder retrieves an order by id.
func (a Api) GetOrder(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /orders/:id"})
		return
	}

	ord, err := a.surge.GetOrder(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ord)
}

// PutStockSnapshot seeds or refreshes the cached sale catalog entry used by
// the order intake's stock pre-check.
func (a Api) PutStockSnapshot(c *gin.Context) {
	var req model2.PutStockSnapshot
	if err := c.BindJSON(&req); err != nil {
		return
	}
	if err := req.ValidatePutStockSnapshot(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snapshot, err := req.ToStockSnapshot()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.surge.PutStockSnapshot(c.Request.Context(), snapshot); err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
