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
	"github.com/surgecart/surge/config"

	"github.com/surgecart/surge/api/middleware"

	"github.com/gin-gonic/gin"
	"github.com/surgecart/surge"
)

type Api struct {
	surge  *surge.Surge
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	admitted := router.Group("/", middleware.AdmissionMiddleware(a.surge))
	admitted.POST("/seckill/orders", a.PlaceSeckillOrder)

	router.GET("/orders/:id", a.GetOrder)
	router.PUT("/seckill/stock", a.PutStockSnapshot)

	return a.router
}

func NewAPI(s *surge.Surge) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{surge: s, router: r}
}
