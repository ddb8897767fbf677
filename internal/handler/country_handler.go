package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ArbeitEmployee/studyabroad-api/internal/models"
	"github.com/ArbeitEmployee/studyabroad-api/internal/service"
	appErrors "github.com/ArbeitEmployee/studyabroad-api/pkg/errors"
	"github.com/ArbeitEmployee/studyabroad-api/pkg/response"
)

// CountryHandler exposes destination country catalog endpoints.
type CountryHandler struct {
	service *service.CountryService
}

// NewCountryHandler creates a new country handler.
func NewCountryHandler(svc *service.CountryService) *CountryHandler {
	return &CountryHandler{service: svc}
}

// List godoc
// @Summary List countries
// @Description List destination countries with pagination
// @Tags Countries
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param search query string false "Search by name or code"
// @Param region query string false "Region filter"
// @Param active query bool false "Active filter"
// @Success 200 {object} response.Envelope
// @Router /countries [get]
func (h *CountryHandler) List(c *gin.Context) {
	var filter models.CountryFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	filter.Search = c.Query("search")
	filter.Region = c.Query("region")
	if active := c.Query("active"); active != "" {
		if val, err := strconv.ParseBool(active); err == nil {
			filter.Active = &val
		}
	}
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	countries, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, countries, pagination)
}

// Get godoc
// @Summary Get country
// @Description Get a country with its eligibility criteria
// @Tags Countries
// @Produce json
// @Param id path string true "Country ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /countries/{id} [get]
func (h *CountryHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create country
// @Description Add a destination country to the catalog
// @Tags Countries
// @Accept json
// @Produce json
// @Param payload body service.CountryPayload true "Country payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /countries [post]
func (h *CountryHandler) Create(c *gin.Context) {
	var payload service.CountryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	country, err := h.service.Create(c.Request.Context(), payload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, country)
}

// Update godoc
// @Summary Update country
// @Description Update a catalog country
// @Tags Countries
// @Accept json
// @Produce json
// @Param id path string true "Country ID"
// @Param payload body service.CountryPayload true "Country payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /countries/{id} [put]
func (h *CountryHandler) Update(c *gin.Context) {
	var payload service.CountryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	country, err := h.service.Update(c.Request.Context(), c.Param("id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, country, nil)
}

// Criteria godoc
// @Summary List eligibility criteria
// @Description List eligibility criteria for a country, optionally filtered by visa type
// @Tags Countries
// @Produce json
// @Param id path string true "Country ID"
// @Param visa_type query string false "Visa type filter"
// @Success 200 {object} response.Envelope
// @Router /countries/{id}/criteria [get]
func (h *CountryHandler) Criteria(c *gin.Context) {
	criteria, err := h.service.Criteria(c.Request.Context(), c.Param("id"), models.VisaType(c.Query("visa_type")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, criteria, nil)
}

// AddCriteria godoc
// @Summary Add eligibility criterion
// @Description Add an eligibility criterion to a country
// @Tags Countries
// @Accept json
// @Produce json
// @Param id path string true "Country ID"
// @Param payload body service.CountryCriteriaPayload true "Criterion payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /countries/{id}/criteria [post]
func (h *CountryHandler) AddCriteria(c *gin.Context) {
	var payload service.CountryCriteriaPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	criterion, err := h.service.AddCriteria(c.Request.Context(), c.Param("id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, criterion)
}

// RemoveCriteria godoc
// @Summary Remove eligibility criterion
// @Description Remove an eligibility criterion from a country
// @Tags Countries
// @Produce json
// @Param id path string true "Country ID"
// @Param criteriaId path string true "Criterion ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /countries/{id}/criteria/{criteriaId} [delete]
func (h *CountryHandler) RemoveCriteria(c *gin.Context) {
	if err := h.service.RemoveCriteria(c.Request.Context(), c.Param("id"), c.Param("criteriaId")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
