package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Counts(t *testing.T) {
	c := NewCollector()

	c.ObserveRequest("GET", "/api/landing-pages/:id", 200, 3*time.Millisecond)
	c.ObserveRequest("GET", "/api/landing-pages/:id", 200, 5*time.Millisecond)
	c.ObserveRequest("GET", "/api/landing-pages/:id", 404, time.Millisecond)
	c.ObserveDelivery("created", "success", 40*time.Millisecond)
	c.ObserveDelivery("created", "failed", time.Second)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"ok requests", testutil.ToFloat64(c.requests.WithLabelValues("GET", "/api/landing-pages/:id", "200")), 2},
		{"not found", testutil.ToFloat64(c.requests.WithLabelValues("GET", "/api/landing-pages/:id", "404")), 1},
		{"delivered", testutil.ToFloat64(c.deliveries.WithLabelValues("created", "success")), 1},
		{"failed", testutil.ToFloat64(c.deliveries.WithLabelValues("created", "failed")), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if n := testutil.CollectAndCount(c); n != 6 {
		t.Errorf("CollectAndCount() = %d, want 6", n)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry(NewCollector())
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
}
