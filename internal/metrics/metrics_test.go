package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

func TestRegistry_setTargetUpTogglesGauge(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())

	reg.SetTargetUp("t1", true)
	if v := gaugeValue(t, reg.TargetUp.WithLabelValues("t1")); v != 1 {
		t.Errorf("up gauge = %v, want 1", v)
	}

	reg.SetTargetUp("t1", false)
	if v := gaugeValue(t, reg.TargetUp.WithLabelValues("t1")); v != 0 {
		t.Errorf("up gauge = %v, want 0", v)
	}
}

func TestRegistry_observeCycleIncrementsCounter(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())

	reg.ObserveCycle("acme", "ok")
	reg.ObserveCycle("acme", "ok")
	if v := counterValue(t, reg.CyclesTotal.WithLabelValues("acme", "ok")); v != 2 {
		t.Errorf("cycles counter = %v, want 2", v)
	}
}

func TestRegistry_observeNotificationAndEvent(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())

	reg.ObserveNotification("webhook", "success")
	if v := counterValue(t, reg.NotificationsSent.WithLabelValues("webhook", "success")); v != 1 {
		t.Errorf("notifications counter = %v, want 1", v)
	}

	reg.ObserveEvent("AlertDown")
	if v := counterValue(t, reg.EventsTotal.WithLabelValues("AlertDown")); v != 1 {
		t.Errorf("events counter = %v, want 1", v)
	}
}
