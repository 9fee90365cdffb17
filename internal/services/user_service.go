package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"agency_portal_echo/internal/apperr"
	"agency_portal_echo/internal/models"
)

// Identity is what a verified session says about the caller.
type Identity struct {
	UID   string
	Email string
	Name  string
	Admin bool
}

type PreferenceInput struct {
	Channel       models.NotificationChannel `json:"channel" validate:"required,oneof=email whatsapp none"`
	WhatsappPhone string                     `json:"whatsappPhone" validate:"omitempty,max=50"`
}

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Resolve returns the local user for a verified identity, creating it on
// first sight. The admin role follows the identity's admin claim.
func (s *UserService) Resolve(ctx context.Context, id Identity) (*models.User, error) {
	db := s.db.WithContext(ctx)

	role := models.UserRoleCustomer
	if id.Admin {
		role = models.UserRoleAdmin
	}

	var user models.User
	err := db.Where("firebase_uid = ?", id.UID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{FirebaseUID: id.UID, Email: id.Email, Name: id.Name, Role: role}
		if err := db.Create(&user).Error; err != nil {
			return nil, apperr.DatabaseUnavailable(err)
		}
		return &user, nil
	}
	if err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}

	updates := map[string]interface{}{}
	if id.Email != "" && id.Email != user.Email {
		updates["email"] = id.Email
	}
	if id.Name != "" && user.Name == "" {
		updates["name"] = id.Name
	}
	if role != user.Role {
		updates["role"] = role
	}
	if len(updates) > 0 {
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, apperr.DatabaseUnavailable(err)
		}
	}
	return &user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, user models.User, name, phone string) (*models.User, error) {
	if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"name":  name,
		"phone": phone,
	}).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	user.Name = name
	user.Phone = phone
	return &user, nil
}

// Preference returns the stored preference, or the email default.
func (s *UserService) Preference(ctx context.Context, userID uint) (*models.UserNotifPreference, error) {
	var pref models.UserNotifPreference
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.UserNotifPreference{UserID: userID, Channel: models.NotificationChannelEmail}, nil
	}
	if err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	return &pref, nil
}

func (s *UserService) SetPreference(ctx context.Context, userID uint, in PreferenceInput) (*models.UserNotifPreference, error) {
	pref, err := s.Preference(ctx, userID)
	if err != nil {
		return nil, err
	}
	pref.Channel = in.Channel
	pref.WhatsappPhone = in.WhatsappPhone
	if err := s.db.WithContext(ctx).Save(pref).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	return pref, nil
}
