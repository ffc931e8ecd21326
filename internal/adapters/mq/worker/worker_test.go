package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/apexgp/apex-scoring/internal/adapters/mq/queue"
	"github.com/apexgp/apex-scoring/internal/adapters/mq/worker"
	"github.com/apexgp/apex-scoring/internal/domain/model"
)

// recordingWriter captures per-race scores and optionally fails.
type recordingWriter struct {
	mu     sync.Mutex
	scores []model.PerRaceScore
	err    error
}

func (w *recordingWriter) PutPerRaceScore(_ context.Context, score model.PerRaceScore) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.scores = append(w.scores, score)
	return nil
}

// recordingApplier captures applied points and optionally fails.
type recordingApplier struct {
	mu      sync.Mutex
	applied map[string]int
	err     error
}

func (a *recordingApplier) Apply(_ context.Context, userID, _, _ string, racePoints int) (model.LeaderboardEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return model.LeaderboardEntry{}, a.err
	}
	if a.applied == nil {
		a.applied = make(map[string]int)
	}
	a.applied[userID] += racePoints
	return model.LeaderboardEntry{UserID: userID, TotalPoints: a.applied[userID]}, nil
}

func grid(drivers ...int) []model.GridSlot {
	slots := make([]model.GridSlot, len(drivers))
	for i, d := range drivers {
		slots[i] = model.GridSlot{Position: i + 1, DriverNumber: d}
	}
	return slots
}

func makeTask(user string, pred model.Prediction) queue.Task {
	pred.UserID = user
	result := model.RaceResult{GridOrder: grid(1, 2, 3)}
	return queue.Task{
		Ref:        model.RaceRef{Category: "f1", Season: "2026", RaceID: "race-1"},
		Result:     &result,
		Prediction: pred,
	}
}

func runTask(t queue.Task) queue.Outcome {
	q := queue.NewInMemoryQueue(queue.WithCapacity(1))
	outcomes := make(chan queue.Outcome, 1)
	t.Done = func(o queue.Outcome) { outcomes <- o }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := taskWriter
	applier := taskApplier
	w := worker.New(q, writer, applier, worker.WithName("test-worker"))
	go w.Run(ctx)
	defer func() {
		shutdownCtx, c := context.WithTimeout(context.Background(), time.Second)
		defer c()
		_ = w.Shutdown(shutdownCtx)
	}()

	So(q.Enqueue(ctx, t), ShouldBeTrue)

	select {
	case o := <-outcomes:
		return o
	case <-time.After(2 * time.Second):
		So("task never completed", ShouldBeBlank)
		return queue.Outcome{}
	}
}

// shared fakes swapped per test case
var (
	taskWriter  *recordingWriter
	taskApplier *recordingApplier
)

func TestWorker_ProcessTask(t *testing.T) {
	Convey("Given a running worker", t, func() {
		taskWriter = &recordingWriter{}
		taskApplier = &recordingApplier{}

		Convey("When a valid prediction is processed", func() {
			pred := model.Prediction{GridOrder: grid(1, 2, 3)}
			outcome := runTask(makeTask("user-1", pred))

			Convey("Then the outcome carries the race points", func() {
				So(outcome.Err, ShouldBeNil)
				So(outcome.Skipped, ShouldBeFalse)
				So(outcome.UserID, ShouldEqual, "user-1")
				// exact top three plus winner, podium bonuses
				So(outcome.Points, ShouldEqual, 70)
			})

			Convey("And the audit record is persisted before the apply", func() {
				So(len(taskWriter.scores), ShouldEqual, 1)
				So(taskWriter.scores[0].TotalRacePoints, ShouldEqual, 70)
				So(taskApplier.applied["user-1"], ShouldEqual, 70)
			})
		})

		Convey("When the prediction is malformed", func() {
			pred := model.Prediction{} // empty grid
			outcome := runTask(makeTask("user-2", pred))

			Convey("Then the task is skipped, not failed", func() {
				So(outcome.Skipped, ShouldBeTrue)
				So(outcome.Err, ShouldNotBeNil)
			})

			Convey("And nothing is written", func() {
				So(taskWriter.scores, ShouldBeEmpty)
				So(taskApplier.applied, ShouldBeEmpty)
			})
		})

		Convey("When persisting the score fails", func() {
			taskWriter.err = errors.New("store down")
			pred := model.Prediction{GridOrder: grid(1, 2, 3)}
			outcome := runTask(makeTask("user-3", pred))

			Convey("Then the outcome reports the failure", func() {
				So(outcome.Err, ShouldNotBeNil)
				So(outcome.Skipped, ShouldBeFalse)
			})

			Convey("And the apply never runs", func() {
				So(taskApplier.applied, ShouldBeEmpty)
			})
		})

		Convey("When the leaderboard apply fails", func() {
			taskApplier.err = errors.New("conflict storm")
			pred := model.Prediction{GridOrder: grid(1, 2, 3)}
			outcome := runTask(makeTask("user-4", pred))

			Convey("Then the outcome reports the failure with the score persisted", func() {
				So(outcome.Err, ShouldNotBeNil)
				So(len(taskWriter.scores), ShouldEqual, 1)
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool of workers over one queue", t, func() {
		taskWriter = &recordingWriter{}
		taskApplier = &recordingApplier{}
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		pool := worker.NewPool(4, q, taskWriter, taskApplier)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		Convey("When many tasks are enqueued", func() {
			const tasks = 32
			var wg sync.WaitGroup
			wg.Add(tasks)
			for i := 0; i < tasks; i++ {
				t := makeTask("user-1", model.Prediction{GridOrder: grid(1, 2, 3)})
				t.Done = func(queue.Outcome) { wg.Done() }
				So(q.Enqueue(ctx, t), ShouldBeTrue)
			}

			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()

			Convey("Then every task completes", func() {
				select {
				case <-done:
					taskWriter.mu.Lock()
					count := len(taskWriter.scores)
					taskWriter.mu.Unlock()
					So(count, ShouldEqual, tasks)
				case <-time.After(5 * time.Second):
					So("pool never drained", ShouldBeBlank)
				}
				pool.Stop()
			})
		})

		Convey("When the pool is stopped twice", func() {
			pool.Stop()

			Convey("Then the second stop does not panic", func() {
				So(func() { pool.Stop() }, ShouldNotPanic)
			})
		})
	})
}
