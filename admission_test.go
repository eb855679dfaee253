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

package surge

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/surgecart/surge/config"
	"github.com/surgecart/surge/internal/apierror"
	"github.com/surgecart/surge/limiter"
)

// fakeLimiter records every bucket touched and answers from the verdict map;
// unknown keys are admitted.
type fakeLimiter struct {
	calls    []limiter.Key
	verdicts map[limiter.Scope]bool
	err      error
}

func (f *fakeLimiter) TryAcquire(ctx context.Context, key limiter.Key, limit limiter.Limit, cost float64) (bool, error) {
	f.calls = append(f.calls, key)
	if f.err != nil {
		return false, f.err
	}
	if verdict, ok := f.verdicts[key.Scope]; ok {
		return verdict, nil
	}
	return true, nil
}

func mockAdmissionConfig(failOpen bool) {
	config.MockConfig(&config.Configuration{
		RateLimit: config.RateLimitConfig{
			IPPerSecond:      100,
			IPBurst:          100,
			UserPerSecond:    50,
			UserBurst:        50,
			SeckillPerSecond: 10,
			SeckillBurst:     10,
			BucketTTLSec:     300,
			FailOpen:         failOpen,
		},
	})
}

func TestAdmit_IPRejectionShortCircuits(t *testing.T) {
	mockAdmissionConfig(false)
	fl := &fakeLimiter{verdicts: map[limiter.Scope]bool{limiter.ScopeIP: false}}
	s := &Surge{limiter: fl}

	decision, err := s.Admit(context.Background(), "203.0.113.1", "usr_1")
	assert.NoError(t, err)
	assert.Equal(t, DecisionRejectedIP, decision)
	assert.False(t, decision.Admitted())

	// The user bucket must keep its token when the IP ceiling already said no.
	assert.Len(t, fl.calls, 1)
	assert.Equal(t, limiter.ScopeIP, fl.calls[0].Scope)
}

func TestAdmit_UserRejection(t *testing.T) {
	mockAdmissionConfig(false)
	fl := &fakeLimiter{verdicts: map[limiter.Scope]bool{limiter.ScopeUser: false}}
	s := &Surge{limiter: fl}

	decision, err := s.Admit(context.Background(), "203.0.113.1", "usr_1")
	assert.NoError(t, err)
	assert.Equal(t, DecisionRejectedUser, decision)
	assert.Len(t, fl.calls, 2)
}

func TestAdmit_AnonymousUsesOnlyIPBucket(t *testing.T) {
	mockAdmissionConfig(false)
	fl := &fakeLimiter{}
	s := &Surge{limiter: fl}

	decision, err := s.Admit(context.Background(), "203.0.113.1", "")
	assert.NoError(t, err)
	assert.Equal(t, DecisionAdmitted, decision)
	assert.Len(t, fl.calls, 1)
	assert.Equal(t, limiter.ScopeIP, fl.calls[0].Scope)
}

func TestAdmit_StoreOutageFailsClosed(t *testing.T) {
	mockAdmissionConfig(false)
	fl := &fakeLimiter{err: limiter.ErrStoreUnavailable}
	s := &Surge{limiter: fl}

	decision, err := s.Admit(context.Background(), "203.0.113.1", "usr_1")
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrUnavailable))
	assert.False(t, decision.Admitted())
}

func TestAdmit_StoreOutageFailsOpenWhenConfigured(t *testing.T) {
	mockAdmissionConfig(true)
	fl := &fakeLimiter{err: limiter.ErrStoreUnavailable}
	s := &Surge{limiter: fl}

	decision, err := s.Admit(context.Background(), "203.0.113.1", "usr_1")
	assert.NoError(t, err)
	assert.Equal(t, DecisionAdmitted, decision)
}

func TestResolveClientIP(t *testing.T) {
	tests := []struct {
		name          string
		forwardedFor  string
		realIP        string
		remoteAddr    string
		expectedValue string
	}{
		{
			name:          "forwarded chain uses first entry",
			forwardedFor:  "203.0.113.1, 10.0.0.1",
			realIP:        "10.0.0.2",
			remoteAddr:    "10.0.0.3:4567",
			expectedValue: "203.0.113.1",
		},
		{
			name:          "unknown entries are skipped",
			forwardedFor:  "unknown, 203.0.113.7",
			remoteAddr:    "10.0.0.3:4567",
			expectedValue: "203.0.113.7",
		},
		{
			name:          "real ip wins over remote addr",
			forwardedFor:  "unknown",
			realIP:        "203.0.113.9",
			remoteAddr:    "10.0.0.3:4567",
			expectedValue: "203.0.113.9",
		},
		{
			name:          "remote addr is the last resort",
			remoteAddr:    "10.0.0.3:4567",
			expectedValue: "10.0.0.3",
		},
		{
			name:          "remote addr without port",
			remoteAddr:    "10.0.0.3",
			expectedValue: "10.0.0.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/seckill/orders", nil)
			if tt.forwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.forwardedFor)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			req.RemoteAddr = tt.remoteAddr

			assert.Equal(t, tt.expectedValue, ResolveClientIP(req))
		})
	}
}
