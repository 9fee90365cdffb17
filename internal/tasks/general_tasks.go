package tasks

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"agency_portal_echo/internal/models"
)

// LogInfoTaskDef writes its message argument to the log. Operators use it
// to check the worker is alive.
type LogInfoTaskDef struct{}

func (t *LogInfoTaskDef) TaskID() string {
	return "log_info"
}

func (t *LogInfoTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	message, ok := task.Arguments["message"].(string)
	if !ok {
		message = "No message provided"
	}
	zap.S().Infow("log_info task", "task_id", task.ID, "message", message)

	return map[string]interface{}{
		"status":  "success",
		"message": message,
	}, nil
}

var LogInfoTask = &LogInfoTaskDef{}
