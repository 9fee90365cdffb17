package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

var reNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases s, strips diacritics and collapses every run of
// non-alphanumerics into sep.
func Slugify(s, sep string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var buf []rune
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		buf = append(buf, r)
	}

	s = reNonAlnum.ReplaceAllString(string(buf), sep)
	return strings.Trim(s, sep)
}

// BankMethodCode is the PaymentMethod code generated for a bank account,
// e.g. "Bank Central Asia" -> manual_transfer_bank_bank_central_asia_idr.
func BankMethodCode(bankName string) string {
	return "manual_transfer_bank_" + Slugify(bankName, "_") + "_idr"
}

// uniqueSlug appends -2, -3, ... until no row of model uses the slug.
func uniqueSlug(ctx context.Context, db *gorm.DB, model interface{}, base string, excludeID uint) (string, error) {
	slug := base
	for i := 2; i < 100; i++ {
		var count int64
		q := db.WithContext(ctx).Unscoped().Model(model).Where("slug = ?", slug)
		if excludeID != 0 {
			q = q.Where("id <> ?", excludeID)
		}
		if err := q.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("no free slug for %q", base)
}
