package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRoomGauges(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RoomCreated()
	m.RoomCreated()
	m.RoomRemoved(true)

	if got := testutil.ToFloat64(m.RoomsActive); got != 1 {
		t.Errorf("rooms_active = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RoomsCreated); got != 2 {
		t.Errorf("rooms_created_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RoomsEvicted); got != 1 {
		t.Errorf("rooms_evicted_total = %v, want 1", got)
	}
}

func TestRequests(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Request("/room", "200")
	m.Request("/room", "200")

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("/room", "200")); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	// Should not panic
	m.RoomCreated()
	m.ConnectionAdded()
	m.SendFailed()
	m.Request("/x", "500")
}
