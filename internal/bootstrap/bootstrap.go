// Package bootstrap opens the infrastructure shared by the server, the
// worker and the operator CLI.
package bootstrap

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"agency_portal_echo/internal/config"
	"agency_portal_echo/internal/services"
)

// Database connects to Postgres. DATABASE_URL is mandatory.
func Database(cfg config.Config) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	return services.InitDB(cfg.DatabaseURL, cfg.IsProduction())
}

// Cache connects to Redis, or returns nil when REDIS_URL is unset or
// unreachable; callers then read through to the database.
func Cache(cfg config.Config) (services.Cache, func()) {
	if cfg.RedisURL == "" {
		zap.S().Warn("REDIS_URL not set, caching disabled")
		return nil, func() {}
	}
	c, err := services.NewRedisCache(cfg.RedisURL)
	if err != nil {
		zap.S().Warnw("redis unavailable, caching disabled", "error", err)
		return nil, func() {}
	}
	return c, func() { _ = c.Close() }
}

// Events returns the Kafka publisher when brokers are configured and the
// log-only publisher otherwise.
func Events(cfg config.Config) (services.EventPublisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		return services.LogPublisher{}, func() {}
	}
	p, err := services.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaPaymentTopic)
	if err != nil {
		zap.S().Errorw("kafka unavailable, payment events are only logged", "error", err)
		return services.LogPublisher{}, func() {}
	}
	return p, func() { _ = p.Close() }
}

// Gateways builds the configured payment gateways. A gateway without
// credentials is nil and its methods fail at checkout.
func Gateways(cfg config.Config) (*services.DuitkuGateway, *services.MidtransService, error) {
	var (
		duitku   *services.DuitkuGateway
		midtrans *services.MidtransService
		err      error
	)
	if cfg.DuitkuMerchantCode != "" {
		duitku, err = services.NewDuitkuGateway(services.DuitkuConfig{
			MerchantCode:  cfg.DuitkuMerchantCode,
			APIKey:        cfg.DuitkuAPIKey,
			BaseURL:       cfg.DuitkuBaseURL,
			ExpiryMinutes: cfg.DuitkuExpiryMinutes,
		}, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("duitku: %w", err)
		}
	} else {
		zap.S().Warn("DUITKU_MERCHANT_CODE not set, duitku methods disabled")
	}

	if cfg.MidtransServerKey != "" {
		midtrans, err = services.NewMidtransService(services.MidtransConfig{
			ServerKey:    cfg.MidtransServerKey,
			ClientKey:    cfg.MidtransClientKey,
			IsProduction: cfg.MidtransIsProduction,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("midtrans: %w", err)
		}
	} else {
		zap.S().Warn("MIDTRANS_SERVER_KEY not set, midtrans methods disabled")
	}
	return duitku, midtrans, nil
}

func PaymentConfig(cfg config.Config) services.PaymentConfig {
	return services.PaymentConfig{
		AppURL:        cfg.AppURL,
		ManualExpiry:  time.Duration(cfg.ManualPaymentExpiryHours) * time.Hour,
		GatewayExpiry: time.Duration(cfg.DuitkuExpiryMinutes) * time.Minute,
	}
}

func Email(cfg config.Config) *services.EmailService {
	return services.NewEmailService(services.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.EmailFrom,
	})
}

func WhatsAppGateway(cfg config.Config) *services.WhatsAppGateway {
	return services.NewWhatsAppGateway(cfg.WAGatewayBaseURL, cfg.WAGatewayAdminToken, nil)
}
