package system

import "testing"

func TestEstimateCache(t *testing.T) {
	tests := []struct {
		frames, w, h int
		want         uint64
	}{
		{255, 1920, 1080, 255 * 1920 * 1080 * 4},
		{1, 2, 2, 16},
		{0, 1920, 1080, 0},
		{10, -1, 1080, 0},
	}
	for _, tt := range tests {
		if got := EstimateCache(tt.frames, tt.w, tt.h); got != tt.want {
			t.Errorf("EstimateCache(%d, %d, %d) = %d, want %d", tt.frames, tt.w, tt.h, got, tt.want)
		}
	}
}

func TestBudgetFits(t *testing.T) {
	tests := []struct {
		name   string
		budget Budget
		want   bool
	}{
		{"small cache", Budget{Needed: 100, Available: 1000}, true},
		{"exactly half", Budget{Needed: 500, Available: 1000}, true},
		{"too large", Budget{Needed: 600, Available: 1000}, false},
		{"unknown memory", Budget{Needed: 600}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.budget.Fits(); got != tt.want {
				t.Errorf("Fits() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		n    uint64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{255 * 1920 * 1080 * 4, "2.0 GiB"},
	}
	for _, tt := range tests {
		if got := HumanBytes(tt.n); got != tt.want {
			t.Errorf("HumanBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestCheckCache(t *testing.T) {
	b, err := CheckCache(1)
	if err != nil {
		t.Skipf("memory stats unavailable: %v", err)
	}
	if b.Available == 0 {
		t.Error("expected available memory to be reported")
	}
	t.Logf("Budget: %s", b)
}
