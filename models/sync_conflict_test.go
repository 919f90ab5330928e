package models

import (
	"strings"
	"testing"
	"time"
)

func TestDecide(t *testing.T) {
	t0 := time.Unix(100, 0)
	t1 := time.Unix(200, 0)

	tests := []struct {
		name      string
		stored    time.Time
		hasStored bool
		incoming  time.Time
		same      bool
		want      Resolution
	}{
		{"nothing stored", time.Time{}, false, t0, false, ResolutionApply},
		{"incoming newer", t0, true, t1, false, ResolutionApply},
		{"incoming older", t1, true, t0, false, ResolutionStale},
		{"incoming older same payload", t1, true, t0, true, ResolutionStale},
		{"tie same payload", t1, true, t1, true, ResolutionDuplicate},
		{"tie different payload", t1, true, t1, false, ResolutionApply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.stored, tt.hasStored, tt.incoming, tt.same); got != tt.want {
				t.Errorf("Decide() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTextDiffSummary(t *testing.T) {
	summary := textDiffSummary("hello world\n", "hello brave world\n")
	if !strings.HasPrefix(summary, "+6 -0 chars") {
		t.Errorf("unexpected summary header: %q", summary)
	}
	if !strings.Contains(summary, "@@") {
		t.Errorf("summary should carry a patch, got %q", summary)
	}

	long := strings.Repeat("x", 5000)
	if got := textDiffSummary("", long); len(got) > maxDiffSummary {
		t.Errorf("summary length %d exceeds %d", len(got), maxDiffSummary)
	}
}
