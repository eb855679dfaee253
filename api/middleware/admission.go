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
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/surgecart/surge"
	"github.com/surgecart/surge/internal/apierror"
)

// UserIDKey is where the admission middleware leaves the resolved identity
// for downstream handlers. Empty string means anonymous.
const UserIDKey = "surge_user_id"

// AdmissionService is the slice of the gate this middleware needs.
type AdmissionService interface {
	Admit(ctx context.Context, ip, userID string) (surge.Decision, error)
	ResolveUser(credential string) (string, bool)
}

// AdmissionMiddleware throttles requests through the token bucket gate. A
// request rejected on its IP never reaches the user bucket; a credential
// that fails to resolve demotes the request to anonymous instead of failing
// it.
func AdmissionMiddleware(gate AdmissionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := surge.ResolveClientIP(c.Request)
		userID, _ := gate.ResolveUser(c.GetHeader("Authorization"))

		decision, err := gate.Admit(c.Request.Context(), ip, userID)
		if err != nil {
			c.AbortWithStatusJSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": "Service is busy, please retry"})
			return
		}

		switch decision {
		case surge.DecisionRejectedIP:
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests from this address"})
			return
		case surge.DecisionRejectedUser:
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests for this account"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}
