package monitor

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGauges(t *testing.T) {
	m := NewMonitor("montest")

	m.IncOnlinePlayers()
	m.IncOnlinePlayers()
	m.DecOnlinePlayers()
	if v := testutil.ToFloat64(m.metrics.OnlinePlayers); v != 1 {
		t.Errorf("Expected 1 online player, got %v", v)
	}

	m.SetActiveRounds(3)
	if v := testutil.ToFloat64(m.metrics.ActiveRounds); v != 3 {
		t.Errorf("Expected 3 active rounds, got %v", v)
	}
	m.SetActiveRounds(0)
	if v := testutil.ToFloat64(m.metrics.ActiveRounds); v != 0 {
		t.Errorf("Expected the gauge reset to 0, got %v", v)
	}
}

func TestObserveSettlement(t *testing.T) {
	m := NewMonitor("montest2")

	m.ObserveSettlement("dice", 1000, 1980, 2*time.Millisecond)
	m.ObserveSettlement("dice", 1000, 0, time.Millisecond)

	if v := testutil.ToFloat64(m.metrics.BetsSettled.WithLabelValues("dice")); v != 2 {
		t.Errorf("Expected 2 settled bets, got %v", v)
	}
	if v := testutil.ToFloat64(m.metrics.AmountWagered.WithLabelValues("dice")); v != 2000 {
		t.Errorf("Expected 2000 paise wagered, got %v", v)
	}
	if v := testutil.ToFloat64(m.metrics.AmountPaid.WithLabelValues("dice")); v != 1980 {
		t.Errorf("Expected 1980 paise paid, got %v", v)
	}
}
