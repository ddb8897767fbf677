package models

import "time"

// Country represents a supported study/work destination.
type Country struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	Region    string    `db:"region" json:"region"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CountryCriteria is one eligibility criterion for a country and visa type.
type CountryCriteria struct {
	ID          string    `db:"id" json:"id"`
	CountryID   string    `db:"country_id" json:"country_id"`
	VisaType    VisaType  `db:"visa_type" json:"visa_type"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Required    bool      `db:"required" json:"required"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CountryDetail bundles a country with its criteria.
type CountryDetail struct {
	Country
	Criteria []CountryCriteria `db:"-" json:"criteria"`
}

// CountryFilter provides filters for listing countries.
type CountryFilter struct {
	Search    string
	Region    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
