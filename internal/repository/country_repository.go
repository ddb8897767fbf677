package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ArbeitEmployee/studyabroad-api/internal/models"
)

// CountryRepository handles persistence of countries and their criteria.
type CountryRepository struct {
	db *sqlx.DB
}

// NewCountryRepository constructs the repository.
func NewCountryRepository(db *sqlx.DB) *CountryRepository {
	return &CountryRepository{db: db}
}

// Create persists a new country.
func (r *CountryRepository) Create(ctx context.Context, country *models.Country) error {
	if country.ID == "" {
		country.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	country.CreatedAt = now
	country.UpdatedAt = now

	const query = `INSERT INTO countries (id, name, code, region, active, created_at, updated_at)
VALUES (:id, :name, :code, :region, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, country); err != nil {
		return fmt.Errorf("create country: %w", err)
	}
	return nil
}

// Update persists country changes.
func (r *CountryRepository) Update(ctx context.Context, country *models.Country) error {
	country.UpdatedAt = time.Now().UTC()
	const query = `UPDATE countries SET name = :name, code = :code, region = :region, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, country)
	if err != nil {
		return fmt.Errorf("update country: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update country affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("country %s not found", country.ID)
	}
	return nil
}

// FindByID returns a country with its criteria.
func (r *CountryRepository) FindByID(ctx context.Context, id string) (*models.CountryDetail, error) {
	const query = `SELECT id, name, code, region, active, created_at, updated_at FROM countries WHERE id = $1`
	var detail models.CountryDetail
	if err := r.db.GetContext(ctx, &detail.Country, query, id); err != nil {
		return nil, err
	}

	criteria, err := r.ListCriteria(ctx, id, "")
	if err != nil {
		return nil, err
	}
	detail.Criteria = criteria
	return &detail, nil
}

// List returns countries filtered by the provided criteria.
func (r *CountryRepository) List(ctx context.Context, filter models.CountryFilter) ([]models.Country, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Region != "" {
		conditions = append(conditions, fmt.Sprintf("region = $%d", len(args)+1))
		args = append(args, filter.Region)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":       "name",
		"code":       "code",
		"region":     "region",
		"created_at": "created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, name, code, region, active, created_at, updated_at FROM countries%s ORDER BY %s %s LIMIT %d OFFSET %d`, clause, orderBy, order, size, offset)
	var countries []models.Country
	if err := r.db.SelectContext(ctx, &countries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list countries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM countries%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count countries: %w", err)
	}
	return countries, total, nil
}

// ListCriteria returns criteria of a country, optionally filtered by visa type.
func (r *CountryRepository) ListCriteria(ctx context.Context, countryID string, visaType models.VisaType) ([]models.CountryCriteria, error) {
	query := `SELECT id, country_id, visa_type, title, description, required, created_at FROM country_criteria WHERE country_id = $1`
	args := []interface{}{countryID}
	if visaType != "" {
		query += " AND visa_type = $2"
		args = append(args, visaType)
	}
	query += " ORDER BY required DESC, title ASC"

	var criteria []models.CountryCriteria
	if err := r.db.SelectContext(ctx, &criteria, query, args...); err != nil {
		return nil, fmt.Errorf("list country criteria: %w", err)
	}
	return criteria, nil
}

// CreateCriteria persists a new criterion.
func (r *CountryRepository) CreateCriteria(ctx context.Context, criteria *models.CountryCriteria) error {
	if criteria.ID == "" {
		criteria.ID = uuid.NewString()
	}
	criteria.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO country_criteria (id, country_id, visa_type, title, description, required, created_at)
VALUES (:id, :country_id, :visa_type, :title, :description, :required, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, criteria); err != nil {
		return fmt.Errorf("create country criteria: %w", err)
	}
	return nil
}

// DeleteCriteria removes a criterion.
func (r *CountryRepository) DeleteCriteria(ctx context.Context, countryID, criteriaID string) error {
	const query = `DELETE FROM country_criteria WHERE id = $1 AND country_id = $2`
	res, err := r.db.ExecContext(ctx, query, criteriaID, countryID)
	if err != nil {
		return fmt.Errorf("delete country criteria: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete country criteria affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("criteria %s not found", criteriaID)
	}
	return nil
}
