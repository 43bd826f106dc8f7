package progress

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/altafino/invoice-analyzer/internal/models"
)

func TestTrackerLifecycle(t *testing.T) {
	tr := NewTracker(slog.Default())

	tr.Create("job1")
	if p := tr.Snapshot("job1"); p.Status != models.StatusPending || p.Current != 0 {
		t.Fatalf("after Create: %+v", p)
	}

	tr.Begin("job1", 3)
	if p := tr.Snapshot("job1"); p.Status != models.StatusProcessing || p.Total != 3 {
		t.Fatalf("after Begin: %+v", p)
	}

	tr.Advance("job1", "invoice-a.pdf")
	tr.Advance("job1", "invoice-b.pdf")
	if p := tr.Snapshot("job1"); p.Current != 2 || p.Message != "invoice-b.pdf" {
		t.Fatalf("after two Advances: %+v", p)
	}

	tr.Advance("job1", "invoice-c.pdf")
	tr.Complete("job1", "done")
	p := tr.Snapshot("job1")
	if p.Status != models.StatusCompleted || p.Current != 3 {
		t.Fatalf("after Complete: %+v", p)
	}
}

func TestTrackerUnknownJobReadsAsPending(t *testing.T) {
	tr := NewTracker(slog.Default())
	p := tr.Snapshot("never-created")
	if p.Status != models.StatusPending || p.Current != 0 || p.Total != 0 {
		t.Errorf("unknown job snapshot = %+v", p)
	}
}

func TestTrackerTerminalStateDoesNotRegress(t *testing.T) {
	tr := NewTracker(slog.Default())
	tr.Create("job1")
	tr.Begin("job1", 2)
	tr.Advance("job1", "a.pdf")
	tr.Fail("job1", "credential expired")

	tr.Advance("job1", "b.pdf")
	tr.Complete("job1", "late completion")
	tr.Begin("job1", 99)

	p := tr.Snapshot("job1")
	if p.Status != models.StatusError {
		t.Errorf("status = %q, want %q", p.Status, models.StatusError)
	}
	if p.Current != 1 || p.Total != 2 {
		t.Errorf("counts changed after terminal state: %+v", p)
	}
	if p.Message != "credential expired" {
		t.Errorf("message = %q", p.Message)
	}
}

func TestTrackerCurrentNeverExceedsTotal(t *testing.T) {
	tr := NewTracker(slog.Default())
	tr.Create("job1")
	tr.Begin("job1", 2)
	for i := 0; i < 5; i++ {
		tr.Advance("job1", "x.pdf")
	}
	if p := tr.Snapshot("job1"); p.Current != 2 {
		t.Errorf("current = %d, want 2", p.Current)
	}
}

func TestTrackerMonotonicUnderConcurrency(t *testing.T) {
	tr := NewTracker(slog.Default())
	tr.Create("job1")
	tr.Begin("job1", 100)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// One poller asserting monotonicity while writers advance.
	var last int
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			p := tr.Snapshot("job1")
			if p.Current < last {
				t.Errorf("current went backwards: %d -> %d", last, p.Current)
				return
			}
			last = p.Current
		}
	}()

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.Advance("job1", fmt.Sprintf("file-%d.pdf", i))
		}(i)
	}

	// Wait for the writers, then release the poller.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	close(stop)
	<-done

	if p := tr.Snapshot("job1"); p.Current != 100 {
		t.Errorf("current = %d, want 100", p.Current)
	}
}

func TestTrackerCleanupExpired(t *testing.T) {
	tr := NewTracker(slog.Default())

	tr.Create("finished")
	tr.Begin("finished", 1)
	tr.Advance("finished", "a.pdf")
	tr.Complete("finished", "done")

	tr.Create("running")
	tr.Begin("running", 5)

	// Zero retention expires every terminal job immediately.
	time.Sleep(time.Millisecond)
	if removed := tr.CleanupExpired(0); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	if p := tr.Snapshot("running"); p.Status != models.StatusProcessing {
		t.Errorf("running job was purged: %+v", p)
	}
	if p := tr.Snapshot("finished"); p.Status != models.StatusPending {
		t.Errorf("finished job should read as unknown after purge: %+v", p)
	}
}
