package tasks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"agency_portal_echo/internal/models"
)

// Task history statuses.
const (
	HistorySuccess         = "success"
	HistoryFailure         = "failure"
	HistoryHandlerNotFound = "handler_not_found"
)

// Runner picks up due tasks and executes them with their registered handler.
type Runner struct {
	db       *gorm.DB
	registry *Registry
	now      func() time.Time
}

func NewRunner(db *gorm.DB, registry *Registry) *Runner {
	return &Runner{db: db, registry: registry, now: time.Now}
}

// SetClock replaces the time source, for tests.
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// RunDue executes every active task whose due time has passed and returns
// how many were run.
func (r *Runner) RunDue(ctx context.Context) (int, error) {
	var pending []models.ScheduledTask
	if err := r.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, r.now()).
		Order("due asc").
		Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("fetch pending tasks: %w", err)
	}

	if len(pending) == 0 {
		zap.S().Debug("no pending tasks")
		return 0, nil
	}
	zap.S().Infow("running pending tasks", "count", len(pending))

	ran := 0
	for _, task := range pending {
		if ctx.Err() != nil {
			return ran, ctx.Err()
		}
		r.Execute(ctx, task)
		ran++
	}
	return ran, nil
}

// Execute runs one task, retrying up to MaxAttempt times, records one
// history row per attempt and moves the task to its next state.
func (r *Runner) Execute(ctx context.Context, task models.ScheduledTask) {
	log := zap.S().With("task_id", task.ID, "task_name", task.TaskName)

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		now := r.now()
		log.Errorw("task handler not found, marking as failure")
		r.record(task, now, 0, HistoryHandlerNotFound, 1, map[string]interface{}{"error": "Handler not found"})
		r.update(task, map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
		})
		return
	}

	maxAttempt := task.MaxAttempt
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	var (
		startTime time.Time
		err       error
	)
	for attempt := 1; attempt <= maxAttempt; attempt++ {
		startTime = r.now()
		var result map[string]interface{}
		result, err = r.run(ctx, handler, task)
		runtime := r.now().Sub(startTime)

		if err == nil {
			r.record(task, startTime, runtime, HistorySuccess, attempt, result)
			log.Infow("task completed", "attempt", attempt, "runtime_ms", runtime.Milliseconds())
			break
		}
		r.record(task, startTime, runtime, HistoryFailure, attempt, map[string]interface{}{"error": err.Error()})
		log.Warnw("task attempt failed", "attempt", attempt, "max_attempt", maxAttempt, "error", err)
		if ctx.Err() != nil {
			break
		}
	}

	updates := map[string]interface{}{"last_run": &startTime}
	switch {
	case err != nil:
		log.Errorw("task failed", "error", err)
		updates["status"] = models.ScheduledTaskStatusFailure
	case task.TaskType == models.ScheduledTaskTypeRecurring:
		nextDue := task.NextDue(startTime)
		// a rule with no later occurrence ends the task instead of re-running it
		if nextDue.After(task.Due) {
			updates["due"] = nextDue
		} else {
			updates["status"] = models.ScheduledTaskStatusDone
		}
	default:
		updates["status"] = models.ScheduledTaskStatusDone
	}
	r.update(task, updates)
}

// run calls the handler and turns a panic into an error.
func (r *Runner) run(ctx context.Context, handler TaskHandler, task models.ScheduledTask) (result map[string]interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return handler(ctx, r.db, task)
}

func (r *Runner) record(task models.ScheduledTask, runAt time.Time, runtime time.Duration, status string, attempt int, result map[string]interface{}) {
	history := models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           runAt,
		Runtime:         int(runtime.Milliseconds()),
		Status:          status,
		AttemptNumber:   attempt,
		Arguments:       task.Arguments,
		Result:          result,
	}
	if err := r.db.Create(&history).Error; err != nil {
		zap.S().Errorw("failed to write task history", "task_id", task.ID, "error", err)
	}
}

func (r *Runner) update(task models.ScheduledTask, updates map[string]interface{}) {
	if err := r.db.Model(&models.ScheduledTask{}).Where("id = ?", task.ID).Updates(updates).Error; err != nil {
		zap.S().Errorw("failed to update task", "task_id", task.ID, "error", err)
	}
}
