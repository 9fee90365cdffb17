package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"agency_portal_echo/internal/apperr"
	"agency_portal_echo/internal/models"
)

// SessionGateway is the part of the WhatsApp gateway used for sessions.
type SessionGateway interface {
	CreateUser(ctx context.Context, name, token, webhookURL string) error
	Connect(ctx context.Context, token string) error
	SessionStatus(ctx context.Context, token string) (*SessionStatus, error)
	QRCode(ctx context.Context, token string) (string, error)
	GetWebhook(ctx context.Context, token string) (json.RawMessage, error)
	SetWebhook(ctx context.Context, token, webhookURL string) (json.RawMessage, error)
}

type CreateSessionInput struct {
	Name       string `json:"name" validate:"required,max=100"`
	WebhookURL string `json:"webhookUrl" validate:"omitempty,url"`
}

type WebhookInput struct {
	WebhookURL string `json:"webhookUrl" validate:"required,url"`
}

type ConnectResult struct {
	Session models.WhatsAppSession `json:"session"`
	QRCode  string                 `json:"qrCode,omitempty"`
}

type WhatsAppSessionService struct {
	db  *gorm.DB
	gw  SessionGateway
	now func() time.Time
}

func NewWhatsAppSessionService(db *gorm.DB, gw SessionGateway) *WhatsAppSessionService {
	return &WhatsAppSessionService{db: db, gw: gw, now: time.Now}
}

func (s *WhatsAppSessionService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *WhatsAppSessionService) List(ctx context.Context, user models.User) ([]models.WhatsAppSession, error) {
	var sessions []models.WhatsAppSession
	if err := s.db.WithContext(ctx).
		Preload("BotBinding").
		Where("user_id = ?", user.ID).
		Order("created_at asc").
		Find(&sessions).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	return sessions, nil
}

// Create provisions a session at the gateway. The user needs an active
// subscription whose package allows one more session.
func (s *WhatsAppSessionService) Create(ctx context.Context, user models.User, in CreateSessionInput) (*models.WhatsAppSession, error) {
	db := s.db.WithContext(ctx)

	sub, err := ActiveSubscription(ctx, s.db, user.ID, s.now())
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.Forbidden("An active WhatsApp subscription is required")
	}

	maxSessions := 1
	if sub.Package != nil && sub.Package.MaxSessions > 0 {
		maxSessions = sub.Package.MaxSessions
	}
	var count int64
	if err := db.Model(&models.WhatsAppSession{}).Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	if int(count) >= maxSessions {
		return nil, apperr.Conflict("Session limit of your package reached")
	}

	session := models.WhatsAppSession{
		UserID:     user.ID,
		Name:       in.Name,
		Token:      uuid.NewString(),
		WebhookURL: in.WebhookURL,
	}
	if err := s.gw.CreateUser(ctx, in.Name, session.Token, in.WebhookURL); err != nil {
		return nil, gatewayError("register session", err)
	}
	if err := db.Create(&session).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}

	zap.S().Infow("whatsapp session created", "session_id", session.ID, "user_id", user.ID)
	return &session, nil
}

func (s *WhatsAppSessionService) Get(ctx context.Context, user models.User, id uint) (*models.WhatsAppSession, error) {
	q := s.db.WithContext(ctx).Preload("BotBinding").Where("id = ?", id)
	if !user.IsAdmin() {
		q = q.Where("user_id = ?", user.ID)
	}
	var session models.WhatsAppSession
	if err := q.First(&session).Error; err != nil {
		return nil, apperr.FromDB(err, "Session not found")
	}
	return &session, nil
}

// RefreshStatus polls the gateway and mirrors connected, loggedIn and jid.
func (s *WhatsAppSessionService) RefreshStatus(ctx context.Context, user models.User, id uint) (*models.WhatsAppSession, error) {
	session, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}

	st, err := s.gw.SessionStatus(ctx, session.Token)
	if err != nil {
		return nil, gatewayError("session status", err)
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(session).Updates(map[string]interface{}{
		"connected":      st.Connected,
		"logged_in":      st.LoggedIn,
		"jid":            st.JID,
		"last_status_at": now,
	}).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	session.Connected = st.Connected
	session.LoggedIn = st.LoggedIn
	session.JID = st.JID
	session.LastStatusAt = &now
	return session, nil
}

// Connect opens the session and returns a pairing QR code when the session
// is not logged in yet.
func (s *WhatsAppSessionService) Connect(ctx context.Context, user models.User, id uint) (*ConnectResult, error) {
	session, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if err := s.gw.Connect(ctx, session.Token); err != nil {
		return nil, gatewayError("connect session", err)
	}
	result := &ConnectResult{Session: *session}
	if session.LoggedIn {
		return result, nil
	}
	qr, err := s.gw.QRCode(ctx, session.Token)
	if err != nil {
		return nil, gatewayError("session qr", err)
	}
	result.QRCode = qr
	return result, nil
}

func (s *WhatsAppSessionService) Webhook(ctx context.Context, user models.User, id uint) (json.RawMessage, error) {
	session, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	raw, err := s.gw.GetWebhook(ctx, session.Token)
	if err != nil {
		return nil, gatewayError("get webhook", err)
	}
	return raw, nil
}

func (s *WhatsAppSessionService) SetWebhook(ctx context.Context, user models.User, id uint, in WebhookInput) (json.RawMessage, error) {
	session, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	raw, err := s.gw.SetWebhook(ctx, session.Token, in.WebhookURL)
	if err != nil {
		return nil, gatewayError("set webhook", err)
	}
	if err := s.db.WithContext(ctx).Model(session).Update("webhook_url", in.WebhookURL).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	return raw, nil
}

// Subscription returns the user's running subscription, or nil.
func (s *WhatsAppSessionService) Subscription(ctx context.Context, user models.User) (*models.WhatsAppTransaction, error) {
	return ActiveSubscription(ctx, s.db, user.ID, s.now())
}

// ActiveSubscription returns the user's running WhatsApp subscription with
// the longest remaining time, or nil.
func ActiveSubscription(ctx context.Context, db *gorm.DB, userID uint, now time.Time) (*models.WhatsAppTransaction, error) {
	var wt models.WhatsAppTransaction
	err := db.WithContext(ctx).
		Preload("Package").
		Where("user_id = ? AND starts_at <= ? AND expires_at > ?", userID, now, now).
		Order("expires_at desc").
		First(&wt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	return &wt, nil
}

func gatewayError(op string, err error) error {
	var gwErr *WhatsAppGatewayError
	if errors.As(err, &gwErr) {
		zap.S().Errorw("whatsapp gateway call failed", "op", op, "upstream_status", gwErr.StatusCode, "body", gwErr.Body)
	} else {
		zap.S().Errorw("whatsapp gateway unreachable", "op", op, "error", err)
	}
	return apperr.GatewayUnavailable("WhatsApp gateway is unavailable", err)
}
