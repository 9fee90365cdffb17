package models

// All lists every model handled by AutoMigrate, in dependency order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&UserNotifPreference{},
		&BankDetail{},
		&PaymentMethod{},
		&WhatsAppPackage{},
		&Transaction{},
		&Payment{},
		&PaymentCallbackHistory{},
		&WhatsAppTransaction{},
		&WhatsAppSession{},
		&WhatsAppAIBot{},
		&AIBotDocument{},
		&AIBotSessionBinding{},
		&PortfolioItem{},
		&ScheduledTask{},
		&ScheduledTaskHistory{},
	}
}
