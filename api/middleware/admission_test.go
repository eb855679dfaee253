package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/surgecart/surge"
	"github.com/surgecart/surge/internal/apierror"
)

type fakeGate struct {
	decision surge.Decision
	err      error
	userID   string
	seenIP   string
	seenUser string
}

func (f *fakeGate) Admit(_ context.Context, ip, userID string) (surge.Decision, error) {
	f.seenIP = ip
	f.seenUser = userID
	return f.decision, f.err
}

func (f *fakeGate) ResolveUser(_ string) (string, bool) {
	return f.userID, f.userID != ""
}

func serveThroughGate(gate *fakeGate, mutate func(*http.Request)) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/seckill/orders", AdmissionMiddleware(gate), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(UserIDKey)})
	})

	req := httptest.NewRequest("POST", "/seckill/orders", nil)
	req.RemoteAddr = "10.0.0.3:4567"
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAdmissionMiddleware_Admitted(t *testing.T) {
	gate := &fakeGate{decision: surge.DecisionAdmitted, userID: "usr_1"}

	w := serveThroughGate(gate, func(r *http.Request) {
		r.Header.Set("X-Forwarded-For", "203.0.113.1")
		r.Header.Set("Authorization", "Bearer token")
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "203.0.113.1", gate.seenIP)
	assert.Equal(t, "usr_1", gate.seenUser)
	assert.Contains(t, w.Body.String(), "usr_1")
}

func TestAdmissionMiddleware_IPRejected(t *testing.T) {
	gate := &fakeGate{decision: surge.DecisionRejectedIP}

	w := serveThroughGate(gate, nil)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "address")
}

func TestAdmissionMiddleware_UserRejected(t *testing.T) {
	gate := &fakeGate{decision: surge.DecisionRejectedUser, userID: "usr_1"}

	w := serveThroughGate(gate, nil)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "account")
}

func TestAdmissionMiddleware_StoreOutage(t *testing.T) {
	gate := &fakeGate{err: apierror.NewAPIError(apierror.ErrUnavailable, "Admission check unavailable", nil)}

	w := serveThroughGate(gate, nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
