package netsample

import (
	"testing"
	"time"
)

func snapAt(t time.Time, totalSent uint64) NetworkSnapshot {
	return NetworkSnapshot{Timestamp: t, TotalBytesSent: totalSent}
}

func TestHistoryEvictsOldestAtCapacity(t *testing.T) {
	h := NewHistory(3)
	base := time.Unix(0, 0)
	for i := 0; i < 5; i++ {
		h.Push(snapAt(base.Add(time.Duration(i)*time.Second), uint64(i)))
	}
	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
	got := h.Since(func(NetworkSnapshot) bool { return true })
	want := []uint64{2, 3, 4}
	for i, w := range want {
		if got[i].TotalBytesSent != w {
			t.Errorf("entry %d = %d, want %d", i, got[i].TotalBytesSent, w)
		}
	}
}

func TestHistoryClear(t *testing.T) {
	h := NewHistory(10)
	h.Push(snapAt(time.Now(), 1))
	h.Clear()
	if h.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", h.Len())
	}
	if _, ok := h.Current(); ok {
		t.Error("Current() after Clear should report no sample")
	}
}

func TestRateDerivationScenario(t *testing.T) {
	base := time.Unix(0, 0)
	s0 := snapAt(base, 1000)
	s1 := snapAt(base.Add(time.Second), 3000)
	s2 := snapAt(base.Add(2*time.Second), 8000)

	if r := Rate(s0, s0); r != 0 {
		t.Errorf("first rate = %v, want 0", r)
	}
	if r := Rate(s0, s1); r != 2000 {
		t.Errorf("rate[1] = %v, want 2000", r)
	}
	if r := Rate(s1, s2); r != 5000 {
		t.Errorf("rate[2] = %v, want 5000", r)
	}
}

func TestRateTreatsBackwardStepAsZero(t *testing.T) {
	base := time.Unix(0, 0)
	prev := snapAt(base, 9000)
	cur := snapAt(base.Add(time.Second), 100) // counters reset, e.g. reboot
	if r := Rate(prev, cur); r != 0 {
		t.Errorf("rate across a backward step = %v, want 0", r)
	}
}
