package services

import (
	"context"

	"gorm.io/gorm"

	"agency_portal_echo/internal/apperr"
	"agency_portal_echo/internal/models"
)

type PortfolioInput struct {
	Title       string   `json:"title" validate:"required,max=255"`
	Slug        string   `json:"slug" validate:"omitempty,max=255"`
	Category    string   `json:"category" validate:"required,max=50"`
	Description string   `json:"description"`
	ImageURL    string   `json:"imageUrl" validate:"omitempty,url"`
	ProjectURL  string   `json:"projectUrl" validate:"omitempty,url"`
	Tags        []string `json:"tags" validate:"dive,max=50"`
	IsPublished *bool    `json:"isPublished"`
	SortOrder   int      `json:"sortOrder"`
}

type PortfolioService struct {
	db *gorm.DB
}

func NewPortfolioService(db *gorm.DB) *PortfolioService {
	return &PortfolioService{db: db}
}

// List returns portfolio items, optionally filtered by category. Unpublished
// items are only included for admins.
func (s *PortfolioService) List(ctx context.Context, category string, includeDrafts bool) ([]models.PortfolioItem, error) {
	q := s.db.WithContext(ctx).Order("sort_order asc, created_at desc")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if !includeDrafts {
		q = q.Where("is_published = ?", true)
	}
	var items []models.PortfolioItem
	if err := q.Find(&items).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	return items, nil
}

func (s *PortfolioService) GetBySlug(ctx context.Context, slug string) (*models.PortfolioItem, error) {
	var item models.PortfolioItem
	if err := s.db.WithContext(ctx).Where("slug = ? AND is_published = ?", slug, true).First(&item).Error; err != nil {
		return nil, apperr.FromDB(err, "Portfolio item not found")
	}
	return &item, nil
}

func (s *PortfolioService) Create(ctx context.Context, in PortfolioInput) (*models.PortfolioItem, error) {
	item := models.PortfolioItem{IsPublished: true}
	if err := s.apply(ctx, &item, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	if !item.IsPublished {
		// gorm skips false for columns with a default on create
		s.db.WithContext(ctx).Model(&item).Update("is_published", false)
	}
	return &item, nil
}

func (s *PortfolioService) Update(ctx context.Context, id uint, in PortfolioInput) (*models.PortfolioItem, error) {
	var item models.PortfolioItem
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, apperr.FromDB(err, "Portfolio item not found")
	}
	if err := s.apply(ctx, &item, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(&item).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	return &item, nil
}

func (s *PortfolioService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.PortfolioItem{}, id)
	if res.Error != nil {
		return apperr.DatabaseUnavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Portfolio item not found")
	}
	return nil
}

func (s *PortfolioService) apply(ctx context.Context, item *models.PortfolioItem, in PortfolioInput) error {
	base := in.Slug
	if base == "" {
		base = in.Title
	}
	base = Slugify(base, "-")
	if base == "" {
		return apperr.ValidationFailed("Title must contain letters or digits", map[string]string{"title": "alphanum"})
	}
	slug, err := uniqueSlug(ctx, s.db, &models.PortfolioItem{}, base, item.ID)
	if err != nil {
		return apperr.DatabaseUnavailable(err)
	}

	item.Title = in.Title
	item.Slug = slug
	item.Category = in.Category
	item.Description = in.Description
	item.ImageURL = in.ImageURL
	item.ProjectURL = in.ProjectURL
	item.Tags = in.Tags
	item.SortOrder = in.SortOrder
	if in.IsPublished != nil {
		item.IsPublished = *in.IsPublished
	}
	return nil
}

type PackageInput struct {
	Name         string `json:"name" validate:"required,max=255"`
	Description  string `json:"description"`
	MonthlyPrice int64  `json:"monthlyPrice" validate:"required,gt=0"`
	MaxSessions  int    `json:"maxSessions" validate:"required,gte=1"`
	IsActive     *bool  `json:"isActive"`
}

type PackageService struct {
	db *gorm.DB
}

func NewPackageService(db *gorm.DB) *PackageService {
	return &PackageService{db: db}
}

func (s *PackageService) List(ctx context.Context, includeInactive bool) ([]models.WhatsAppPackage, error) {
	q := s.db.WithContext(ctx).Order("monthly_price asc")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var pkgs []models.WhatsAppPackage
	if err := q.Find(&pkgs).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	return pkgs, nil
}

func (s *PackageService) Create(ctx context.Context, in PackageInput) (*models.WhatsAppPackage, error) {
	pkg := models.WhatsAppPackage{
		Name:         in.Name,
		Description:  in.Description,
		MonthlyPrice: in.MonthlyPrice,
		MaxSessions:  in.MaxSessions,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&pkg).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	if in.IsActive != nil && !*in.IsActive {
		s.db.WithContext(ctx).Model(&pkg).Update("is_active", false)
		pkg.IsActive = false
	}
	return &pkg, nil
}

func (s *PackageService) Update(ctx context.Context, id uint, in PackageInput) (*models.WhatsAppPackage, error) {
	var pkg models.WhatsAppPackage
	if err := s.db.WithContext(ctx).First(&pkg, id).Error; err != nil {
		return nil, apperr.FromDB(err, "Package not found")
	}
	pkg.Name = in.Name
	pkg.Description = in.Description
	pkg.MonthlyPrice = in.MonthlyPrice
	pkg.MaxSessions = in.MaxSessions
	if in.IsActive != nil {
		pkg.IsActive = *in.IsActive
	}
	if err := s.db.WithContext(ctx).Save(&pkg).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	return &pkg, nil
}
