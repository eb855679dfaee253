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
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/surgecart/surge/config"
	"github.com/surgecart/surge/internal/apierror"
	"github.com/surgecart/surge/limiter"
)

// Decision is the admission gate's verdict for one request.
type Decision string

const (
	DecisionAdmitted     Decision = "ADMITTED"
	DecisionRejectedIP   Decision = "REJECTED_IP"
	DecisionRejectedUser Decision = "REJECTED_USER"
)

// Admitted reports whether the request may proceed.
func (d Decision) Admitted() bool {
	return d == DecisionAdmitted
}

// ResolveClientIP extracts the client address the gate should throttle on.
// Precedence: the first usable X-Forwarded-For entry, then X-Real-IP, then
// the socket's remote address. Blank and "unknown" entries are proxy noise
// and are skipped.
func ResolveClientIP(r *http.Request) string {
	for _, entry := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" && !strings.EqualFold(entry, "unknown") {
			return entry
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" && !strings.EqualFold(realIP, "unknown") {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Admit runs the request through the IP bucket and, when an identity is
// present, the per-user bucket. The IP check always runs first and an IP
// rejection short-circuits: no user token is spent on a request that was
// already refused. Tokens consumed here are never refunded.
//
// An empty userID means the request is anonymous and only the IP ceiling
// applies.
func (s *Surge) Admit(ctx context.Context, ip, userID string) (Decision, error) {
	conf, err := config.Fetch()
	if err != nil {
		return DecisionRejectedIP, err
	}
	rl := conf.RateLimit
	idleTTL := time.Duration(rl.BucketTTLSec) * time.Second

	ok, err := s.tryAcquire(ctx, limiter.Key{Scope: limiter.ScopeIP, Identifier: ip},
		limiter.Limit{Rate: rl.IPPerSecond, Burst: rl.IPBurst, IdleTTL: idleTTL}, rl.FailOpen)
	if err != nil {
		return DecisionRejectedIP, err
	}
	if !ok {
		return DecisionRejectedIP, nil
	}

	if userID == "" {
		return DecisionAdmitted, nil
	}

	ok, err = s.tryAcquire(ctx, limiter.Key{Scope: limiter.ScopeUser, Identifier: userID},
		limiter.Limit{Rate: rl.UserPerSecond, Burst: rl.UserBurst, IdleTTL: idleTTL}, rl.FailOpen)
	if err != nil {
		return DecisionRejectedUser, err
	}
	if !ok {
		return DecisionRejectedUser, nil
	}

	return DecisionAdmitted, nil
}

// tryAcquire spends one token and applies the store-outage policy: deny with
// a 503-mapped error by default, admit when fail-open is configured.
func (s *Surge) tryAcquire(ctx context.Context, key limiter.Key, limit limiter.Limit, failOpen bool) (bool, error) {
	ok, err := s.limiter.TryAcquire(ctx, key, limit, 1)
	if err == nil {
		return ok, nil
	}
	if errors.Is(err, limiter.ErrStoreUnavailable) && failOpen {
		logrus.Warnf("admitting %s/%s without a bucket check: %v", key.Scope, key.Identifier, err)
		return true, nil
	}
	return false, apierror.NewAPIError(apierror.ErrUnavailable, "Admission check unavailable", err)
}
