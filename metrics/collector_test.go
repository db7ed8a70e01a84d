package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("upload", "main.c")

	c.IncStageRun("compile")
	c.IncStageRun("package")
	c.IncStageRun("flash")
	c.IncStageRun("flash")
	c.IncStageFailure("flash")
	c.IncStageTimeout("compile")
	c.IncPollCycle()
	c.IncPollCycle()
	c.IncPollCycle()
	c.IncUploadAttempt()
	c.IncUploadAttempt()
	c.IncUploadFailure()
	c.IncUploadSuccess()

	s := c.Snapshot()

	if s.StageRuns["flash"] != 2 {
		t.Errorf("StageRuns[flash] = %d, want 2", s.StageRuns["flash"])
	}
	if s.StageFailures["flash"] != 1 {
		t.Errorf("StageFailures[flash] = %d, want 1", s.StageFailures["flash"])
	}
	if s.StageTimeouts["compile"] != 1 {
		t.Errorf("StageTimeouts[compile] = %d, want 1", s.StageTimeouts["compile"])
	}
	if s.StageFailures["compile"] != 1 {
		t.Errorf("timeout must also count as failure, got %d", s.StageFailures["compile"])
	}
	if s.PollCycles != 3 {
		t.Errorf("PollCycles = %d, want 3", s.PollCycles)
	}
	if s.UploadAttempts != 2 || s.UploadFailures != 1 || s.UploadSuccesses != 1 {
		t.Errorf("upload counters = %d/%d/%d, want 2/1/1",
			s.UploadAttempts, s.UploadFailures, s.UploadSuccesses)
	}
	if s.Command != "upload" || s.Source != "main.c" {
		t.Errorf("dimensions = %q/%q", s.Command, s.Source)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector

	c.IncStageRun("compile")
	c.IncStageFailure("compile")
	c.IncStageTimeout("compile")
	c.IncPollCycle()
	c.IncUploadAttempt()
	c.IncUploadSuccess()
	c.IncUploadFailure()

	s := c.Snapshot()
	if s.PollCycles != 0 || s.StageRuns != nil {
		t.Errorf("nil collector snapshot should be zero, got %+v", s)
	}
}

func TestCollector_SnapshotIsolation(t *testing.T) {
	c := NewCollector("build", "main.c")
	c.IncStageRun("compile")

	s := c.Snapshot()
	c.IncStageRun("compile")

	if s.StageRuns["compile"] != 1 {
		t.Errorf("snapshot mutated after collection: %d", s.StageRuns["compile"])
	}
	s.StageRuns["compile"] = 99
	if c.Snapshot().StageRuns["compile"] != 2 {
		t.Error("mutating a snapshot must not affect the collector")
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector("upload", "main.c")

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncPollCycle()
			c.IncStageRun("flash")
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.PollCycles != 50 || s.StageRuns["flash"] != 50 {
		t.Errorf("concurrent counts = %d/%d, want 50/50", s.PollCycles, s.StageRuns["flash"])
	}
}
