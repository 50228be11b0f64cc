package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestCounterGetOrCreate(t *testing.T) {
	r := NewRegistry("test")
	a := r.Counter("widgets", "widgets processed")
	b := r.Counter("widgets", "widgets processed")
	if a != b {
		t.Fatalf("Counter must return the same instance for the same name")
	}
	a.Inc()
	m := &dto.Metric{}
	if err := a.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.GetCounter().GetValue() != 1 {
		t.Fatalf("counter value = %v, want 1", m.GetCounter().GetValue())
	}
}

func TestGaugeSetAndRead(t *testing.T) {
	r := NewRegistry("test")
	g := r.Gauge("height", "tree height")
	g.Set(42)
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.GetGauge().GetValue() != 42 {
		t.Fatalf("gauge value = %v, want 42", m.GetGauge().GetValue())
	}
}

func TestStandardMetricsRegistered(t *testing.T) {
	if MerkRotations == nil || SubtreesOpen == nil || ProofsGenerated == nil {
		t.Fatalf("standard metrics must be initialized")
	}
}
