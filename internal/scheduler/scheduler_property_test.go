package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"pgregory.net/rapid"

	"github.com/ClusterLabs/pcs-sub012/internal/pool"
	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

// TestSchedulerInvariants drives the scheduler with random operations and
// arbitrary, possibly out-of-order worker messages.
func TestSchedulerInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		fp := newFakePool(0)
		inbox := make(chan types.Message, 256)
		clock := clockwork.NewFakeClockAt(epoch)
		rec := &memRecorder{}
		s := New(fp, inbox, WithClock(clock), WithRecorder(rec),
			WithTimeouts(time.Minute, 3*time.Minute))

		var known []string

		pick := func(rt *rapid.T) string {
			if len(known) == 0 {
				rt.Skip("no tasks yet")
			}
			return rapid.SampledFrom(known).Draw(rt, "ident")
		}

		rt.Repeat(map[string]func(*rapid.T){
			"create": func(rt *rapid.T) {
				ident, err := s.NewTask(types.NewCommandEnvelope("echo", nil))
				if err != nil {
					rt.Fatalf("new task: %v", err)
				}
				known = append(known, ident)
			},
			"tick": func(rt *rapid.T) {
				fp.capacity = rapid.IntRange(0, 3).Draw(rt, "capacity")
				if err := s.Tick(); err != nil {
					rt.Fatalf("tick: %v", err)
				}
			},
			"message": func(rt *rapid.T) {
				ident := pick(rt)
				var msg types.Message
				switch rapid.IntRange(0, 2).Draw(rt, "kind") {
				case 0:
					msg = types.NewExecutedMessage(ident, rapid.IntRange(1, 1<<16).Draw(rt, "pid"))
				case 1:
					msg = types.NewReportMessage(ident, types.NewReportItem(types.SeverityInfo, "R", "", nil))
				default:
					ft := types.FinishType(rapid.IntRange(0, 5).Draw(rt, "finish"))
					msg = types.NewFinishedMessage(ident, ft, nil)
				}
				inbox <- msg
			},
			"kill": func(rt *rapid.T) {
				ident := pick(rt)
				fp.outcomes[ident] = pool.CancelOutcome(rapid.IntRange(0, 2).Draw(rt, "outcome"))
				if err := s.KillTask(ident); err != nil && !errors.Is(err, ErrTaskNotFound) {
					rt.Fatalf("kill: %v", err)
				}
			},
			"advance": func(rt *rapid.T) {
				clock.Advance(time.Duration(rapid.IntRange(1, 240).Draw(rt, "seconds")) * time.Second)
			},
			"": func(rt *rapid.T) {
				checkInvariants(rt, s, fp)
			},
		})
	})
}

func checkInvariants(rt *rapid.T, s *Scheduler, fp *fakePool) {
	for ident, task := range s.tasks {
		finished := task.State() == types.TaskFinished
		if finished != (task.FinishType() != types.FinishUnfinished) {
			rt.Fatalf("task %s: state %s with finish type %s", ident, task.State(), task.FinishType())
		}
		if task.WorkerPID() != -1 && task.State() < types.TaskExecuted {
			rt.Fatalf("task %s: pid %d in state %s", ident, task.WorkerPID(), task.State())
		}
	}

	inFIFO := map[string]bool{}
	for _, ident := range s.fifo {
		if inFIFO[ident] {
			rt.Fatalf("task %s waits twice", ident)
		}
		inFIFO[ident] = true
		task, ok := s.tasks[ident]
		if !ok || task.State() != types.TaskCreated {
			rt.Fatalf("task %s waits but is not CREATED", ident)
		}
	}
	for ident, task := range s.tasks {
		if task.State() == types.TaskCreated && !inFIFO[ident] {
			rt.Fatalf("CREATED task %s is not waiting", ident)
		}
	}

	seen := map[string]bool{}
	for _, ident := range fp.submittedIdents() {
		if seen[ident] {
			rt.Fatalf("task %s submitted twice", ident)
		}
		seen[ident] = true
	}
}
