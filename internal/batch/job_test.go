package batch

import (
	"context"
	"testing"
	"time"
)

func TestJob_Completes(t *testing.T) {
	in := createInputDir(t, "a.png", "b.png")
	out := t.TempDir()

	var calls int
	job := Start(context.Background(), NewOrchestrator(&fakeExtractor{}), Options{
		InputDir: in, OutputDir: out, Template: batchTemplate(), Consolidate: true,
		Progress: func(Progress) { calls++ },
	})

	st := job.Wait()
	if st.State != StateCompleted {
		t.Fatalf("state = %s (%s)", st.State, st.Error)
	}
	if st.Processed != 2 || st.Total != 2 || st.Percent != 100 {
		t.Errorf("status = %+v", st)
	}
	if st.ID == "" || st.ID != job.ID() {
		t.Errorf("ID = %q", st.ID)
	}
	if st.FinishedAt.IsZero() || st.Output == "" {
		t.Errorf("status = %+v", st)
	}
	if calls != 2 {
		t.Errorf("caller progress called %d times", calls)
	}
}

func TestJob_StopFinishesCurrentImage(t *testing.T) {
	in := createInputDir(t, "a.png", "b.png", "c.png")
	entered := make(chan struct{})
	release := make(chan struct{})
	ex := &fakeExtractor{onCall: func(name string) {
		if name == "a.png" {
			close(entered)
			<-release
		}
	}}

	job := Start(context.Background(), NewOrchestrator(ex), Options{
		InputDir: in, OutputDir: t.TempDir(), Template: batchTemplate(), Consolidate: true,
	})

	<-entered
	if st := job.Status(); st.State != StateRunning {
		t.Errorf("state while busy = %s", st.State)
	}
	job.Stop()
	close(release)

	st := job.Wait()
	if st.State != StateStopped {
		t.Fatalf("state = %s (%s)", st.State, st.Error)
	}
	if st.Processed != 1 {
		t.Errorf("processed = %d, want 1", st.Processed)
	}
	if len(ex.seen) != 1 {
		t.Errorf("extracted %v", ex.seen)
	}
}

func TestJob_Fails(t *testing.T) {
	job := Start(context.Background(), NewOrchestrator(&fakeExtractor{}), Options{
		InputDir: createInputDir(t), OutputDir: t.TempDir(), Template: batchTemplate(),
	})

	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}
	st := job.Status()
	if st.State != StateFailed || st.Error == "" {
		t.Errorf("status = %+v", st)
	}
}
