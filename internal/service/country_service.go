package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ArbeitEmployee/studyabroad-api/internal/models"
	appErrors "github.com/ArbeitEmployee/studyabroad-api/pkg/errors"
)

const countryCachePrefix = "catalog:countries"

type countryRepository interface {
	Create(ctx context.Context, country *models.Country) error
	Update(ctx context.Context, country *models.Country) error
	FindByID(ctx context.Context, id string) (*models.CountryDetail, error)
	List(ctx context.Context, filter models.CountryFilter) ([]models.Country, int, error)
	ListCriteria(ctx context.Context, countryID string, visaType models.VisaType) ([]models.CountryCriteria, error)
	CreateCriteria(ctx context.Context, criteria *models.CountryCriteria) error
	DeleteCriteria(ctx context.Context, countryID, criteriaID string) error
}

// CountryPayload creates or updates a destination country.
type CountryPayload struct {
	Name   string `json:"name" validate:"required"`
	Code   string `json:"code" validate:"required,len=2"`
	Region string `json:"region" validate:"required"`
	Active *bool  `json:"active,omitempty"`
}

// CountryCriteriaPayload adds an eligibility criterion.
type CountryCriteriaPayload struct {
	VisaType    models.VisaType `json:"visa_type" validate:"required"`
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Required    bool            `json:"required"`
}

// CountryService manages the destination catalog.
type CountryService struct {
	repo      countryRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewCountryService constructs a CountryService instance.
func NewCountryService(repo countryRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *CountryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CountryService{repo: repo, cache: cache, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

// Create adds a country to the catalog.
func (s *CountryService) Create(ctx context.Context, payload CountryPayload) (*models.Country, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid country payload")
	}

	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	country := &models.Country{
		Name:   payload.Name,
		Code:   payload.Code,
		Region: payload.Region,
		Active: active,
	}
	if err := s.repo.Create(ctx, country); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create country")
	}

	s.invalidate(ctx)
	return country, nil
}

// Update changes an existing country.
func (s *CountryService) Update(ctx context.Context, id string, payload CountryPayload) (*models.Country, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid country payload")
	}

	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	country := detail.Country
	country.Name = payload.Name
	country.Code = payload.Code
	country.Region = payload.Region
	if payload.Active != nil {
		country.Active = *payload.Active
	}
	if err := s.repo.Update(ctx, &country); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update country")
	}

	s.invalidate(ctx)
	return &country, nil
}

// Get returns a country with its criteria.
func (s *CountryService) Get(ctx context.Context, id string) (*models.CountryDetail, error) {
	cacheKey := fmt.Sprintf("%s:detail:%s", countryCachePrefix, id)
	var cached models.CountryDetail
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "country not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load country")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, detail, s.cacheTTL); err != nil {
			s.logger.Warn("cache country detail", zap.Error(err))
		}
	}
	return detail, nil
}

// List returns countries matching the filter.
func (s *CountryService) List(ctx context.Context, filter models.CountryFilter) ([]models.Country, *models.Pagination, error) {
	countries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list countries")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return countries, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Criteria returns a country's criteria, optionally filtered by visa type.
func (s *CountryService) Criteria(ctx context.Context, countryID string, visaType models.VisaType) ([]models.CountryCriteria, error) {
	if visaType != "" && !visaType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown visa type %q", visaType))
	}
	if _, err := s.Get(ctx, countryID); err != nil {
		return nil, err
	}

	criteria, err := s.repo.ListCriteria(ctx, countryID, visaType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list criteria")
	}
	return criteria, nil
}

// AddCriteria attaches a criterion to a country.
func (s *CountryService) AddCriteria(ctx context.Context, countryID string, payload CountryCriteriaPayload) (*models.CountryCriteria, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid criteria payload")
	}
	if !payload.VisaType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown visa type %q", payload.VisaType))
	}
	if _, err := s.Get(ctx, countryID); err != nil {
		return nil, err
	}

	criteria := &models.CountryCriteria{
		CountryID:   countryID,
		VisaType:    payload.VisaType,
		Title:       payload.Title,
		Description: payload.Description,
		Required:    payload.Required,
	}
	if err := s.repo.CreateCriteria(ctx, criteria); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create criteria")
	}

	s.invalidate(ctx)
	return criteria, nil
}

// RemoveCriteria detaches a criterion from a country.
func (s *CountryService) RemoveCriteria(ctx context.Context, countryID, criteriaID string) error {
	if err := s.repo.DeleteCriteria(ctx, countryID, criteriaID); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "criteria not found")
	}
	s.invalidate(ctx)
	return nil
}

func (s *CountryService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, countryCachePrefix+"*"); err != nil {
		s.logger.Warn("invalidate country cache", zap.Error(err))
	}
}
