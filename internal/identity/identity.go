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

// Package identity derives a user identity from an opaque bearer credential.
// Resolution is deliberately tolerant: a missing, malformed, expired or
// unverifiable credential resolves to "no identity", never to an error.
// Admission then falls back to IP-only limiting for that request.
package identity

import (
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// Resolver resolves an optional user identifier from a request credential.
type Resolver interface {
	ResolveUserID(credential string) (string, bool)
}

// JWTResolver verifies HMAC-signed JWTs and extracts the subject claim.
type JWTResolver struct {
	secret []byte
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

// ResolveUserID parses a bearer credential and returns the token subject.
// The "Bearer " prefix is optional. Any parse or verification failure
// resolves to ("", false).
func (r *JWTResolver) ResolveUserID(credential string) (string, bool) {
	credential = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(credential), "Bearer "))
	if credential == "" || len(r.secret) == 0 {
		return "", false
	}

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(credential, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}
