package services

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultCountry = "ID"
	localeCacheTTL = 24 * time.Hour
)

// countryHeaders are checked in order; each is set by a different edge.
var countryHeaders = []string{"CF-IPCountry", "X-Vercel-IP-Country", "X-Country-Code"}

type LocaleInfo struct {
	Country  string `json:"country"`
	Locale   string `json:"locale"`
	Currency string `json:"currency"`
	Source   string `json:"source"`
}

// LocaleService guesses the visitor's display locale and currency. Charges
// are always IDR; the currency here is for display only.
type LocaleService struct {
	cache Cache
}

// NewLocaleService creates the service. cache may be nil.
func NewLocaleService(cache Cache) *LocaleService {
	return &LocaleService{cache: cache}
}

func (s *LocaleService) Detect(ctx context.Context, headers http.Header, ip string) LocaleInfo {
	for _, h := range countryHeaders {
		if country, ok := validCountry(headers.Get(h)); ok {
			s.remember(ctx, ip, country)
			return localeFor(country, "header")
		}
	}

	if s.cache != nil && ip != "" {
		var country string
		if err := s.cache.Get(ctx, localeCacheKey(ip), &country); err == nil {
			if c, ok := validCountry(country); ok {
				return localeFor(c, "cache")
			}
		}
	}

	return localeFor(DefaultCountry, "default")
}

func (s *LocaleService) remember(ctx context.Context, ip, country string) {
	if s.cache == nil || ip == "" {
		return
	}
	if err := s.cache.Set(ctx, localeCacheKey(ip), country, localeCacheTTL); err != nil {
		zap.S().Debugw("locale cache set failed", "ip", ip, "error", err)
	}
}

func localeCacheKey(ip string) string {
	return "locale:ip:" + ip
}

// validCountry accepts two-letter codes. Cloudflare uses XX for unknown and
// T1 for Tor.
func validCountry(v string) (string, bool) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if len(v) != 2 || v == "XX" || v == "T1" {
		return "", false
	}
	for _, r := range v {
		if r < 'A' || r > 'Z' {
			return "", false
		}
	}
	return v, true
}

func localeFor(country, source string) LocaleInfo {
	if country == "ID" {
		return LocaleInfo{Country: country, Locale: "id-ID", Currency: "IDR", Source: source}
	}
	return LocaleInfo{Country: country, Locale: "en-US", Currency: "USD", Source: source}
}
