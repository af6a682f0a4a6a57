package loadavg

import "testing"

func TestClassifyEscalatesByCPU(t *testing.T) {
	d := NewDetector(DefaultThresholds(), func() int64 { return 0 })

	cases := []struct {
		cpu  float64
		want Level
	}{
		{10, LevelNormal},
		{65, LevelProgressive},
		{85, LevelCapacity},
		{99, LevelSystemDown},
	}
	for _, c := range cases {
		got := d.classify(c.cpu, 0)
		d.level.Store(int32(got))
		if got != c.want {
			t.Errorf("classify(%v) = %v, want %v", c.cpu, got, c.want)
		}
	}
}

func TestClassifyEscalatesByUpload(t *testing.T) {
	d := NewDetector(DefaultThresholds(), func() int64 { return 0 })
	got := d.classify(0, DefaultThresholds().SystemDownUpload+1)
	if got != LevelSystemDown {
		t.Fatalf("expected SystemDown on upload spike, got %v", got)
	}
}

func TestRecoveryRequiresHysteresis(t *testing.T) {
	th := DefaultThresholds()
	th.HysteresisSamples = 2
	d := NewDetector(th, func() int64 { return 0 })

	d.level.Store(int32(LevelCapacity))
	first := d.classify(10, 0)
	if first != LevelRecovery {
		t.Fatalf("expected Recovery on first quiet sample, got %v", first)
	}
	d.level.Store(int32(first))

	second := d.classify(10, 0)
	if second != LevelNormal {
		t.Fatalf("expected Normal after hysteresis window, got %v", second)
	}
}

func TestRejectThreshold(t *testing.T) {
	d := NewDetector(DefaultThresholds(), func() int64 { return 0 })
	d.level.Store(int32(LevelProgressive))
	if d.Reject() {
		t.Fatal("expected Progressive to not reject")
	}
	d.level.Store(int32(LevelCapacity))
	if !d.Reject() {
		t.Fatal("expected Capacity to reject")
	}
}
