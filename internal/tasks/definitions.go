package tasks

// Deps are the services task handlers need.
type Deps struct {
	Sweeper     Sweeper
	Mailer      Mailer
	Messenger   Messenger
	NotifyToken string
}

// DefineTasks registers all available tasks
func DefineTasks(r *Registry, deps Deps) {
	r.Register(LogInfoTask.TaskID(), LogInfoTask.HandleExecution)

	if deps.Sweeper != nil {
		expire := NewExpirePaymentsTask(deps.Sweeper)
		r.Register(expire.TaskID(), expire.HandleExecution)
	}

	receipt := NewSendPaymentReceiptTask(deps.Mailer, deps.Messenger, deps.NotifyToken)
	r.Register(receipt.TaskID(), receipt.HandleExecution)
}
