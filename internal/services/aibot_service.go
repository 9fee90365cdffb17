package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agency_portal_echo/internal/apperr"
	"agency_portal_echo/internal/models"
)

type BotInput struct {
	Name         string `json:"name" validate:"required,max=255"`
	SystemPrompt string `json:"systemPrompt" validate:"required"`
	IsActive     *bool  `json:"isActive"`
}

type DocumentInput struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content" validate:"required"`
}

type BindInput struct {
	BotID uint `json:"botId" validate:"required"`
}

// SessionResolution answers the AI worker's "who owns this token" question.
type SessionResolution struct {
	UserID             uint `json:"userId"`
	SessionID          uint `json:"sessionId"`
	BotActive          bool `json:"botActive"`
	SubscriptionActive bool `json:"subscriptionActive"`
}

type KnowledgeDocument struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type BotKnowledge struct {
	BotID        uint                `json:"botId"`
	Name         string              `json:"name"`
	SystemPrompt string              `json:"systemPrompt"`
	Documents    []KnowledgeDocument `json:"documents"`
}

type AIBotService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAIBotService(db *gorm.DB) *AIBotService {
	return &AIBotService{db: db, now: time.Now}
}

func (s *AIBotService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *AIBotService) ListBots(ctx context.Context, user models.User) ([]models.WhatsAppAIBot, error) {
	var bots []models.WhatsAppAIBot
	if err := s.db.WithContext(ctx).
		Preload("Documents").
		Where("user_id = ?", user.ID).
		Order("created_at asc").
		Find(&bots).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	return bots, nil
}

func (s *AIBotService) GetBot(ctx context.Context, user models.User, id uint) (*models.WhatsAppAIBot, error) {
	var bot models.WhatsAppAIBot
	if err := s.db.WithContext(ctx).
		Preload("Documents").
		Where("id = ? AND user_id = ?", id, user.ID).
		First(&bot).Error; err != nil {
		return nil, apperr.FromDB(err, "Bot not found")
	}
	return &bot, nil
}

func (s *AIBotService) CreateBot(ctx context.Context, user models.User, in BotInput) (*models.WhatsAppAIBot, error) {
	bot := models.WhatsAppAIBot{
		UserID:       user.ID,
		Name:         in.Name,
		SystemPrompt: in.SystemPrompt,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&bot).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	if in.IsActive != nil && !*in.IsActive {
		s.db.WithContext(ctx).Model(&bot).Update("is_active", false)
		bot.IsActive = false
	}
	return &bot, nil
}

func (s *AIBotService) UpdateBot(ctx context.Context, user models.User, id uint, in BotInput) (*models.WhatsAppAIBot, error) {
	bot, err := s.GetBot(ctx, user, id)
	if err != nil {
		return nil, err
	}
	bot.Name = in.Name
	bot.SystemPrompt = in.SystemPrompt
	if in.IsActive != nil {
		bot.IsActive = *in.IsActive
	}
	if err := s.db.WithContext(ctx).Omit("Documents").Save(bot).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	return bot, nil
}

// DeleteBot removes the bot and switches off every binding that used it.
func (s *AIBotService) DeleteBot(ctx context.Context, user models.User, id uint) error {
	bot, err := s.GetBot(ctx, user, id)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.AIBotSessionBinding{}).
			Where("bot_id = ?", bot.ID).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Delete(bot).Error
	})
	if err != nil {
		return apperr.DatabaseUnavailable(err)
	}
	return nil
}

func (s *AIBotService) AddDocument(ctx context.Context, user models.User, botID uint, in DocumentInput) (*models.AIBotDocument, error) {
	if _, err := s.GetBot(ctx, user, botID); err != nil {
		return nil, err
	}
	doc := models.AIBotDocument{BotID: botID, Title: in.Title, Content: in.Content}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	return &doc, nil
}

func (s *AIBotService) DeleteDocument(ctx context.Context, user models.User, botID, docID uint) error {
	if _, err := s.GetBot(ctx, user, botID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("bot_id = ?", botID).Delete(&models.AIBotDocument{}, docID)
	if res.Error != nil {
		return apperr.DatabaseUnavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Document not found")
	}
	return nil
}

// Bind attaches a bot to a session. A session has at most one binding row;
// binding again reuses and reactivates it.
func (s *AIBotService) Bind(ctx context.Context, user models.User, sessionID uint, in BindInput) (*models.AIBotSessionBinding, error) {
	db := s.db.WithContext(ctx)

	var session models.WhatsAppSession
	if err := db.Where("id = ? AND user_id = ?", sessionID, user.ID).First(&session).Error; err != nil {
		return nil, apperr.FromDB(err, "Session not found")
	}
	if _, err := s.GetBot(ctx, user, in.BotID); err != nil {
		return nil, err
	}

	binding := models.AIBotSessionBinding{SessionID: sessionID, BotID: in.BotID, IsActive: true}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"bot_id", "is_active", "updated_at"}),
	}).Create(&binding).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}

	if err := db.Preload("Bot").Where("session_id = ?", sessionID).First(&binding).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	return &binding, nil
}

// Unbind deactivates the session's binding without deleting it.
func (s *AIBotService) Unbind(ctx context.Context, user models.User, sessionID uint) error {
	db := s.db.WithContext(ctx)

	var session models.WhatsAppSession
	if err := db.Where("id = ? AND user_id = ?", sessionID, user.ID).First(&session).Error; err != nil {
		return apperr.FromDB(err, "Session not found")
	}
	res := db.Model(&models.AIBotSessionBinding{}).
		Where("session_id = ?", sessionID).
		Update("is_active", false)
	if res.Error != nil {
		return apperr.DatabaseUnavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Session has no bot")
	}
	return nil
}

// ResolveToken maps a session token to its owner and activation flags.
func (s *AIBotService) ResolveToken(ctx context.Context, token string) (*SessionResolution, error) {
	session, err := s.sessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	res := &SessionResolution{UserID: session.UserID, SessionID: session.ID}

	binding, err := s.activeBinding(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	res.BotActive = binding != nil

	sub, err := ActiveSubscription(ctx, s.db, session.UserID, s.now())
	if err != nil {
		return nil, err
	}
	res.SubscriptionActive = sub != nil
	return res, nil
}

// Knowledge returns the bound bot's prompt and documents for a session token.
func (s *AIBotService) Knowledge(ctx context.Context, token string) (*BotKnowledge, error) {
	session, err := s.sessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	binding, err := s.activeBinding(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if binding == nil {
		return nil, apperr.NotFound("Session has no active bot")
	}

	var docs []models.AIBotDocument
	if err := s.db.WithContext(ctx).
		Where("bot_id = ?", binding.BotID).
		Order("id asc").
		Find(&docs).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}

	out := &BotKnowledge{
		BotID:        binding.Bot.ID,
		Name:         binding.Bot.Name,
		SystemPrompt: binding.Bot.SystemPrompt,
		Documents:    make([]KnowledgeDocument, 0, len(docs)),
	}
	for _, d := range docs {
		out.Documents = append(out.Documents, KnowledgeDocument{Title: d.Title, Content: d.Content})
	}
	return out, nil
}

func (s *AIBotService) sessionByToken(ctx context.Context, token string) (*models.WhatsAppSession, error) {
	if token == "" {
		return nil, apperr.ValidationFailed("token is required", map[string]string{"token": "required"})
	}
	var session models.WhatsAppSession
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&session).Error; err != nil {
		return nil, apperr.FromDB(err, "Session not found")
	}
	return &session, nil
}

// activeBinding returns the session's binding when both it and its bot are
// active, or nil.
func (s *AIBotService) activeBinding(ctx context.Context, sessionID uint) (*models.AIBotSessionBinding, error) {
	var binding models.AIBotSessionBinding
	err := s.db.WithContext(ctx).
		Preload("Bot").
		Where("session_id = ? AND is_active = ?", sessionID, true).
		First(&binding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	if binding.Bot == nil || !binding.Bot.IsActive {
		return nil, nil
	}
	return &binding, nil
}
