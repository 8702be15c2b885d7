package httpapi

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	name string
	err  error
}

func (f fakeChecker) Ping(ctx context.Context) error { return f.err }
func (f fakeChecker) Name() string                   { return f.name }

func TestHealthReportsHealthyWhenAllCheckersPass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest("GET", "/health", nil)

	s := &Server{HealthCheckers: []HealthChecker{
		fakeChecker{name: "postgres"},
		fakeChecker{name: "redis"},
	}}
	s.health(c)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestHealthReportsDegradedWhenACheckerFails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest("GET", "/health", nil)

	s := &Server{HealthCheckers: []HealthChecker{
		fakeChecker{name: "postgres"},
		fakeChecker{name: "chain_rpc", err: errors.New("dial tcp: connection refused")},
	}}
	s.health(c)

	require.Equal(t, 503, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"degraded"`)
	require.Contains(t, rec.Body.String(), "connection refused")
}
