package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"

	"agency_portal_echo/internal/models"
	"agency_portal_echo/internal/services"
)

// Mailer sends plain-text email. *services.EmailService implements it.
type Mailer interface {
	Configured() bool
	SendEmail(to []string, subject, body string) error
}

// Messenger sends a WhatsApp text through a gateway session.
// *services.WhatsAppGateway implements it.
type Messenger interface {
	SendMessage(ctx context.Context, token, phone, text string) error
}

const receiptSubject = "Payment received for order $order_id"

const receiptTemplate = `Hi $name,

We have received your payment of $amount for order $order_id ($description).
Paid at: $paid_at

Thank you!`

// SendPaymentReceiptTaskDef delivers the receipt queued when a payment
// becomes paid, over the channel the customer picked.
type SendPaymentReceiptTaskDef struct {
	mailer      Mailer
	messenger   Messenger
	notifyToken string
}

// NewSendPaymentReceiptTask wires the receipt task. messenger may be nil and
// notifyToken empty when WhatsApp notifications are not configured.
func NewSendPaymentReceiptTask(mailer Mailer, messenger Messenger, notifyToken string) *SendPaymentReceiptTaskDef {
	return &SendPaymentReceiptTaskDef{mailer: mailer, messenger: messenger, notifyToken: notifyToken}
}

func (t *SendPaymentReceiptTaskDef) TaskID() string {
	return services.ReceiptTaskName
}

func (t *SendPaymentReceiptTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	paymentID, err := uintArg(task.Arguments, "payment_id")
	if err != nil {
		return nil, err
	}

	var payment models.Payment
	if err := db.WithContext(ctx).Preload("Transaction.User").First(&payment, paymentID).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	if payment.Status != models.StatusPaid {
		return map[string]interface{}{"status": "skipped", "reason": "payment is " + string(payment.Status)}, nil
	}
	if payment.Transaction == nil || payment.Transaction.User == nil {
		return nil, fmt.Errorf("payment %d has no owner", payment.ID)
	}
	user := *payment.Transaction.User

	var pref models.UserNotifPreference
	err = db.WithContext(ctx).Where("user_id = ?", user.ID).First(&pref).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		pref = models.UserNotifPreference{UserID: user.ID, Channel: models.NotificationChannelEmail}
	case err != nil:
		return nil, fmt.Errorf("failed to fetch preference: %w", err)
	}

	log := zap.S().With("payment_id", payment.ID, "user_id", user.ID, "channel", pref.Channel)

	var sendErr error
	switch pref.Channel {
	case models.NotificationChannelEmail:
		sendErr = t.sendEmail(user, payment)
	case models.NotificationChannelWhatsapp:
		sendErr = t.sendWhatsapp(ctx, user, pref, payment)
	case models.NotificationChannelNone:
		log.Infow("receipt disabled by preference")
		return map[string]interface{}{"status": "skipped", "channel": string(pref.Channel)}, nil
	default:
		log.Warnw("unsupported notification channel")
		return map[string]interface{}{"status": "skipped", "channel": string(pref.Channel)}, nil
	}
	if sendErr != nil {
		return nil, fmt.Errorf("send %s receipt: %w", pref.Channel, sendErr)
	}

	log.Infow("payment receipt sent")
	return map[string]interface{}{"status": "success", "channel": string(pref.Channel)}, nil
}

func (t *SendPaymentReceiptTaskDef) sendEmail(user models.User, p models.Payment) error {
	if t.mailer == nil || !t.mailer.Configured() {
		return errors.New("email is not configured")
	}
	if user.Email == "" {
		return errors.New("user has no email address")
	}
	return t.mailer.SendEmail([]string{user.Email}, replacePlaceholders(receiptSubject, user, p), replacePlaceholders(receiptTemplate, user, p))
}

func (t *SendPaymentReceiptTaskDef) sendWhatsapp(ctx context.Context, user models.User, pref models.UserNotifPreference, p models.Payment) error {
	if t.messenger == nil || t.notifyToken == "" {
		return errors.New("whatsapp notifications are not configured")
	}
	phone := pref.WhatsappPhone
	if phone == "" {
		phone = user.Phone
	}
	if phone == "" {
		return errors.New("user has no whatsapp number")
	}
	return t.messenger.SendMessage(ctx, t.notifyToken, phone, replacePlaceholders(receiptTemplate, user, p))
}

var idr = message.NewPrinter(language.Indonesian)

// formatAmount renders rupiah with Indonesian digit grouping, e.g. Rp 150.000.
func formatAmount(amount int64) string {
	return idr.Sprintf("Rp %d", amount)
}

func replacePlaceholders(template string, user models.User, p models.Payment) string {
	name := user.Name
	if name == "" {
		name = user.Email
	}
	description := ""
	if p.Transaction != nil {
		description = p.Transaction.Description
	}
	paidAt := ""
	if p.PaymentDate != nil {
		paidAt = p.PaymentDate.Format("2 Jan 2006 15:04 MST")
	}

	return strings.NewReplacer(
		"$name", name,
		"$email", user.Email,
		"$amount", formatAmount(p.Amount),
		"$order_id", p.OrderID,
		"$description", description,
		"$paid_at", paidAt,
	).Replace(template)
}
