package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"agency_portal_echo/internal/models"
	"agency_portal_echo/internal/services"
	"agency_portal_echo/internal/testutil"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestRunner(t *testing.T, db *gorm.DB, r *Registry) *Runner {
	t.Helper()
	runner := NewRunner(db, r)
	runner.SetClock(func() time.Time { return testNow })
	return runner
}

func createTask(t *testing.T, db *gorm.DB, name string, due time.Time, taskType models.ScheduledTaskType, rule *string, maxAttempt int) models.ScheduledTask {
	t.Helper()
	task, err := BuildScheduledTask(name, map[string]interface{}{"message": "hi"}, due, rule, taskType, maxAttempt)
	if err != nil {
		t.Fatalf("BuildScheduledTask: %v", err)
	}
	testutil.MustCreate(t, db, task)
	return *task
}

func reloadTask(t *testing.T, db *gorm.DB, id uint) models.ScheduledTask {
	t.Helper()
	var task models.ScheduledTask
	if err := db.First(&task, id).Error; err != nil {
		t.Fatalf("reload task: %v", err)
	}
	return task
}

func histories(t *testing.T, db *gorm.DB, taskID uint) []models.ScheduledTaskHistory {
	t.Helper()
	var hs []models.ScheduledTaskHistory
	if err := db.Where("scheduled_task_id = ?", taskID).Order("attempt_number asc").Find(&hs).Error; err != nil {
		t.Fatalf("load history: %v", err)
	}
	return hs
}

// flaky fails the first n calls.
func flaky(n int) (TaskHandler, *int) {
	calls := 0
	return func(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
		calls++
		if calls <= n {
			return nil, errors.New("temporary failure")
		}
		return map[string]interface{}{"status": "success"}, nil
	}, &calls
}

func TestRunnerAttempts(t *testing.T) {
	tests := []struct {
		name        string
		failures    int
		maxAttempt  int
		wantCalls   int
		wantStatus  models.ScheduledTaskStatus
		wantHistory []string
	}{
		{name: "first try", failures: 0, maxAttempt: 3, wantCalls: 1, wantStatus: models.ScheduledTaskStatusDone, wantHistory: []string{HistorySuccess}},
		{name: "recovers on retry", failures: 2, maxAttempt: 3, wantCalls: 3, wantStatus: models.ScheduledTaskStatusDone, wantHistory: []string{HistoryFailure, HistoryFailure, HistorySuccess}},
		{name: "gives up", failures: 5, maxAttempt: 2, wantCalls: 2, wantStatus: models.ScheduledTaskStatusFailure, wantHistory: []string{HistoryFailure, HistoryFailure}},
		{name: "zero max attempt runs once", failures: 5, maxAttempt: 0, wantCalls: 1, wantStatus: models.ScheduledTaskStatusFailure, wantHistory: []string{HistoryFailure}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.NewDB(t)
			handler, calls := flaky(tt.failures)
			r := NewRegistry()
			r.Register("flaky", handler)
			task := createTask(t, db, "flaky", testNow.Add(-time.Minute), models.ScheduledTaskTypeOneTime, nil, tt.maxAttempt)

			ran, err := newTestRunner(t, db, r).RunDue(context.Background())
			if err != nil || ran != 1 {
				t.Fatalf("RunDue = %d, %v", ran, err)
			}
			if *calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", *calls, tt.wantCalls)
			}
			got := reloadTask(t, db, task.ID)
			if got.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", got.Status, tt.wantStatus)
			}
			if got.LastRun == nil {
				t.Error("last_run not set")
			}
			hs := histories(t, db, task.ID)
			if len(hs) != len(tt.wantHistory) {
				t.Fatalf("history rows = %d, want %d", len(hs), len(tt.wantHistory))
			}
			for i, h := range hs {
				if h.Status != tt.wantHistory[i] || h.AttemptNumber != i+1 {
					t.Errorf("history[%d] = %s attempt %d", i, h.Status, h.AttemptNumber)
				}
			}
		})
	}
}

func TestRunnerUnknownHandler(t *testing.T) {
	db := testutil.NewDB(t)
	task := createTask(t, db, "missing", testNow.Add(-time.Minute), models.ScheduledTaskTypeOneTime, nil, 3)

	newTestRunner(t, db, NewRegistry()).Execute(context.Background(), task)

	if got := reloadTask(t, db, task.ID).Status; got != models.ScheduledTaskStatusFailure {
		t.Errorf("status = %s, want failure", got)
	}
	hs := histories(t, db, task.ID)
	if len(hs) != 1 || hs[0].Status != HistoryHandlerNotFound {
		t.Errorf("history = %+v", hs)
	}
}

func TestRunnerRecoversPanics(t *testing.T) {
	db := testutil.NewDB(t)
	r := NewRegistry()
	r.Register("boom", func(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
		panic("nil map")
	})
	task := createTask(t, db, "boom", testNow, models.ScheduledTaskTypeOneTime, nil, 1)

	newTestRunner(t, db, r).Execute(context.Background(), task)

	if got := reloadTask(t, db, task.ID).Status; got != models.ScheduledTaskStatusFailure {
		t.Errorf("status = %s, want failure", got)
	}
}

func TestRunnerRecurringAdvancesDue(t *testing.T) {
	db := testutil.NewDB(t)
	r := NewRegistry()
	r.Register(LogInfoTask.TaskID(), LogInfoTask.HandleExecution)
	rule := ExpirePaymentsRule
	due := testNow.Add(-time.Minute)
	task := createTask(t, db, LogInfoTask.TaskID(), due, models.ScheduledTaskTypeRecurring, &rule, 1)

	newTestRunner(t, db, r).Execute(context.Background(), task)

	got := reloadTask(t, db, task.ID)
	if got.Status != models.ScheduledTaskStatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}
	if want := due.Add(5 * time.Minute); !got.Due.Equal(want) {
		t.Errorf("due = %s, want %s", got.Due, want)
	}
}

func TestRunDueSkipsFutureAndInactiveTasks(t *testing.T) {
	db := testutil.NewDB(t)
	handler, calls := flaky(0)
	r := NewRegistry()
	r.Register("job", handler)

	createTask(t, db, "job", testNow.Add(time.Hour), models.ScheduledTaskTypeOneTime, nil, 1)
	done := createTask(t, db, "job", testNow.Add(-time.Hour), models.ScheduledTaskTypeOneTime, nil, 1)
	if err := db.Model(&done).Update("status", models.ScheduledTaskStatusDone).Error; err != nil {
		t.Fatal(err)
	}

	ran, err := newTestRunner(t, db, r).RunDue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ran != 0 || *calls != 0 {
		t.Errorf("ran = %d, calls = %d, want none", ran, *calls)
	}
}

func TestEnsureRecurringCreatesOnce(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	for i, want := range []bool{true, false} {
		created, err := EnsureRecurring(ctx, db, ExpirePaymentsTaskName, ExpirePaymentsRule, testNow)
		if err != nil {
			t.Fatal(err)
		}
		if created != want {
			t.Errorf("call %d created = %v, want %v", i+1, created, want)
		}
	}

	var n int64
	db.Model(&models.ScheduledTask{}).Where("task_name = ?", ExpirePaymentsTaskName).Count(&n)
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

type fakeSweeper struct {
	res services.SweepResult
	err error
}

func (f fakeSweeper) Sweep(ctx context.Context) (services.SweepResult, error) {
	return f.res, f.err
}

func TestExpirePaymentsTask(t *testing.T) {
	task := NewExpirePaymentsTask(fakeSweeper{res: services.SweepResult{Scanned: 3, Expired: 2, Skipped: 1}})
	res, err := task.HandleExecution(context.Background(), nil, models.ScheduledTask{})
	if err != nil {
		t.Fatal(err)
	}
	if res["expired"] != 2 || res["scanned"] != 3 {
		t.Errorf("result = %v", res)
	}

	failing := NewExpirePaymentsTask(fakeSweeper{err: errors.New("db down")})
	if _, err := failing.HandleExecution(context.Background(), nil, models.ScheduledTask{}); err == nil {
		t.Error("expected sweep error")
	}
}

func TestDefineTasks(t *testing.T) {
	r := NewRegistry()
	DefineTasks(r, Deps{Sweeper: fakeSweeper{}})

	want := []string{ExpirePaymentsTaskName, "log_info", services.ReceiptTaskName}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("names = %v, want %v", got, want)
		}
	}
}

func TestUintArg(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]interface{}
		want    uint
		wantErr bool
	}{
		{name: "json number", args: map[string]interface{}{"payment_id": float64(7)}, want: 7},
		{name: "in memory uint", args: map[string]interface{}{"payment_id": uint(8)}, want: 8},
		{name: "missing", args: map[string]interface{}{}, wantErr: true},
		{name: "zero", args: map[string]interface{}{"payment_id": float64(0)}, wantErr: true},
		{name: "string", args: map[string]interface{}{"payment_id": "7"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := uintArg(tt.args, "payment_id")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
