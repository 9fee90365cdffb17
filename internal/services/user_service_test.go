package services

import (
	"context"
	"testing"

	"agency_portal_echo/internal/models"
	"agency_portal_echo/internal/testutil"
)

func TestResolveCreatesThenUpdates(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewUserService(db)
	ctx := context.Background()

	u, err := svc.Resolve(ctx, Identity{UID: "fb-1", Email: "old@example.com", Name: "Ani"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if u.Role != models.UserRoleCustomer {
		t.Errorf("role = %s, want customer", u.Role)
	}

	again, err := svc.Resolve(ctx, Identity{UID: "fb-1", Email: "new@example.com", Name: "Other", Admin: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if again.ID != u.ID {
		t.Errorf("second resolve created user %d, want %d", again.ID, u.ID)
	}

	var stored models.User
	db.First(&stored, u.ID)
	if stored.Email != "new@example.com" || stored.Name != "Ani" || stored.Role != models.UserRoleAdmin {
		t.Errorf("stored = %+v", stored)
	}
	if n := countRows(t, db, &models.User{}); n != 1 {
		t.Errorf("users = %d, want 1", n)
	}
}

func TestNotificationPreference(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewUserService(db)
	ctx := context.Background()
	user := createUser(t, db, "u1")

	pref, err := svc.Preference(ctx, user.ID)
	if err != nil {
		t.Fatalf("Preference: %v", err)
	}
	if pref.Channel != models.NotificationChannelEmail {
		t.Errorf("default channel = %s, want email", pref.Channel)
	}

	if _, err := svc.SetPreference(ctx, user.ID, PreferenceInput{Channel: models.NotificationChannelWhatsapp, WhatsappPhone: "0812"}); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	if _, err := svc.SetPreference(ctx, user.ID, PreferenceInput{Channel: models.NotificationChannelWhatsapp, WhatsappPhone: "0813"}); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}

	pref, _ = svc.Preference(ctx, user.ID)
	if pref.Channel != models.NotificationChannelWhatsapp || pref.WhatsappPhone != "0813" {
		t.Errorf("preference = %+v", pref)
	}
	if n := countRows(t, db, &models.UserNotifPreference{}); n != 1 {
		t.Errorf("preference rows = %d, want 1", n)
	}
}
