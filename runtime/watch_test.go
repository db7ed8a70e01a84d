package runtime

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestWatch_RebuildsOnChange(t *testing.T) {
	cfg := testConfig(t)
	o := newOrchestrator(t, cfg, testDeps(&stageRunner{}, &appearingLocator{}))

	builds := make(chan *BuildResult, 8)
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- o.Watch(ctx, 20*time.Millisecond, func(res *BuildResult, _ error) {
			builds <- res
		})
	}()

	waitBuild := func(what string) *BuildResult {
		t.Helper()
		select {
		case res := <-builds:
			return res
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s", what)
			return nil
		}
	}

	first := waitBuild("initial build")
	if !first.Outcome.IsSuccess() {
		t.Fatalf("initial build = %+v", first.Outcome)
	}

	// A burst of writes collapses into one rebuild.
	for i := range 3 {
		content := []byte("void main(void) { P1 = " + string(rune('1'+i)) + "; }\n")
		if err := os.WriteFile(cfg.Source, content, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	second := waitBuild("rebuild")
	if second.Artifact.ImageDigest == first.Artifact.ImageDigest {
		t.Error("rebuild should reflect the edited source")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Watch = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop on cancellation")
	}
}
