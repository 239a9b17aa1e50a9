package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

func TestHealthChecker_Aggregation(t *testing.T) {
	tests := []struct {
		name    string
		results []string
		want    string
	}{
		{"all healthy", []string{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []string{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []string{StatusDegraded, StatusUnhealthy}, StatusUnhealthy},
		{"unknown is unhealthy", []string{"weird"}, StatusUnhealthy},
		{"no checks", nil, StatusHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker("warden", "v1")
			for i, s := range tt.results {
				status := s
				hc.AddCheck(string(rune('a'+i)), func(context.Context) CheckResult { return CheckResult{Status: status} })
			}
			if got := hc.CheckHealth(context.Background()).Status; got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestHealthChecker_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hc := NewHealthChecker("warden", "v1")
	hc.AddCheck("db", func(context.Context) CheckResult { return CheckResult{Status: StatusUnhealthy} })

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	hc.Handler()(c)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var body HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Service != "warden" || body.Checks["db"].Status != StatusUnhealthy {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestDatabaseHealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectPing()
	if res := DatabaseHealthCheck(db)(context.Background()); res.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %+v", res)
	}

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	if res := DatabaseHealthCheck(db)(context.Background()); res.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %+v", res)
	}

	if res := DatabaseHealthCheck(nil)(context.Background()); res.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy for nil db, got %+v", res)
	}
}

func TestRedisHealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	if res := RedisHealthCheck(client)(context.Background()); res.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %+v", res)
	}

	mr.Close()
	if res := RedisHealthCheck(client)(context.Background()); res.Status != StatusDegraded {
		t.Fatalf("expected degraded after redis shutdown, got %+v", res)
	}
}

func TestConfigurationHealthCheck(t *testing.T) {
	res := ConfigurationHealthCheck(map[string]bool{"JWT_SECRET": true, "DATABASE_URL": false})(context.Background())
	if res.Status != StatusUnhealthy || res.Message != "Missing required configuration: [DATABASE_URL]" {
		t.Fatalf("unexpected result %+v", res)
	}
}
