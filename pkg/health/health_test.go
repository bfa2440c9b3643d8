package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestRunWorstStatusWins(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
	}{
		{
			name:   "empty",
			checks: nil,
			want:   StatusUp,
		},
		{
			name: "degraded optional",
			checks: map[string]Check{
				"index": PingCheck(func(context.Context) error { return nil }, false),
				"cache": PingCheck(func(context.Context) error { return errors.New("refused") }, true),
			},
			want: StatusDegraded,
		},
		{
			name: "down required",
			checks: map[string]Check{
				"cache": PingCheck(func(context.Context) error { return errors.New("refused") }, true),
				"store": PingCheck(func(context.Context) error { return errors.New("refused") }, false),
			},
			want: StatusDown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("Status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Components) != len(tt.checks) {
				t.Errorf("components = %d, want %d", len(report.Components), len(tt.checks))
			}
		})
	}
}

func TestNamesSorted(t *testing.T) {
	c := NewChecker()
	c.Register("store", PingCheck(func(context.Context) error { return nil }, false))
	c.Register("index", PingCheck(func(context.Context) error { return nil }, false))
	if got := c.Names(); !reflect.DeepEqual(got, []string{"index", "store"}) {
		t.Errorf("Names = %v", got)
	}
}

func TestReadyHandlerUnavailable(t *testing.T) {
	c := NewChecker()
	c.Register("store", PingCheck(func(context.Context) error { return errors.New("down") }, false))
	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
