package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ArbeitEmployee/studyabroad-api/internal/models"
	"github.com/ArbeitEmployee/studyabroad-api/internal/service"
	appErrors "github.com/ArbeitEmployee/studyabroad-api/pkg/errors"
	"github.com/ArbeitEmployee/studyabroad-api/pkg/response"
)

// VisaHandler exposes the visa case workflow endpoints.
type VisaHandler struct {
	service *service.VisaService
}

// NewVisaHandler creates a new visa handler.
func NewVisaHandler(svc *service.VisaService) *VisaHandler {
	return &VisaHandler{service: svc}
}

// Create godoc
// @Summary Open visa case
// @Description Open a new visa case with its checklist instantiated from the matching template
// @Tags Visa
// @Accept json
// @Produce json
// @Param payload body models.CreateVisaRequestPayload true "Visa request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /visa-requests [post]
func (h *VisaHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload models.CreateVisaRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	detail, err := h.service.Create(c.Request.Context(), claims, payload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, detail)
}

// List godoc
// @Summary List visa cases
// @Description List visa cases scoped to the caller's role
// @Tags Visa
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param status query string false "Status filter"
// @Param visa_type query string false "Visa type filter"
// @Param destination_country query string false "Destination country filter"
// @Param student_id query string false "Student filter"
// @Param consultant_id query string false "Consultant filter"
// @Success 200 {object} response.Envelope
// @Router /visa-requests [get]
func (h *VisaHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.VisaFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	filter.Status = models.VisaStatus(c.Query("status"))
	filter.VisaType = models.VisaType(c.Query("visa_type"))
	filter.DestinationCountry = c.Query("destination_country")
	filter.StudentID = c.Query("student_id")
	filter.ConsultantID = c.Query("consultant_id")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	requests, pagination, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get visa case
// @Description Get a visa case with its checklist and documents
// @Tags Visa
// @Produce json
// @Param id path string true "Visa request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /visa-requests/{id} [get]
func (h *VisaHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	detail, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// Assign godoc
// @Summary Assign consultant
// @Description Assign a consultant to a pending visa case
// @Tags Visa
// @Accept json
// @Produce json
// @Param id path string true "Visa request ID"
// @Param payload body models.AssignVisaRequestPayload true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /visa-requests/{id}/assign [put]
func (h *VisaHandler) Assign(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload models.AssignVisaRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	detail, err := h.service.Assign(c.Request.Context(), claims, c.Param("id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// ReviewDocument godoc
// @Summary Review document
// @Description Approve or reject an uploaded document
// @Tags Visa
// @Accept json
// @Produce json
// @Param id path string true "Visa request ID"
// @Param name path string true "Document name"
// @Param payload body models.ReviewDocumentPayload true "Review payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /visa-requests/{id}/documents/{name}/review [put]
func (h *VisaHandler) ReviewDocument(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload models.ReviewDocumentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	doc, err := h.service.ReviewDocument(c.Request.Context(), claims, c.Param("id"), c.Param("name"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, doc, nil)
}

// UploadDocument godoc
// @Summary Upload document
// @Description Upload or replace a checklist document file
// @Tags Visa
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Visa request ID"
// @Param name path string true "Document name"
// @Param file formData file true "Document file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /visa-requests/{id}/documents/{name} [post]
func (h *VisaHandler) UploadDocument(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "cannot read uploaded file"))
		return
	}
	defer file.Close()

	upload := service.DocumentUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Reader:      file,
	}

	doc, err := h.service.UploadDocument(c.Request.Context(), claims, c.Param("id"), c.Param("name"), upload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, doc, nil)
}

// CompleteStep godoc
// @Summary Complete workflow step
// @Description Complete the current checklist step and advance the case
// @Tags Visa
// @Accept json
// @Produce json
// @Param id path string true "Visa request ID"
// @Param payload body models.CompleteStepPayload true "Step payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /visa-requests/{id}/steps/complete [put]
func (h *VisaHandler) CompleteStep(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload models.CompleteStepPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	detail, err := h.service.CompleteStep(c.Request.Context(), claims, c.Param("id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// Decide godoc
// @Summary Record visa decision
// @Description Record the final approve or reject outcome for a case
// @Tags Visa
// @Accept json
// @Produce json
// @Param id path string true "Visa request ID"
// @Param payload body models.VisaDecisionPayload true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /visa-requests/{id}/decision [put]
func (h *VisaHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload models.VisaDecisionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	detail, err := h.service.Decide(c.Request.Context(), claims, c.Param("id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// Cancel godoc
// @Summary Cancel visa case
// @Description Cancel an open visa case with a reason
// @Tags Visa
// @Accept json
// @Produce json
// @Param id path string true "Visa request ID"
// @Param payload body models.CancelVisaRequestPayload true "Cancel payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /visa-requests/{id}/cancel [put]
func (h *VisaHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload models.CancelVisaRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	detail, err := h.service.Cancel(c.Request.Context(), claims, c.Param("id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// DocumentLink godoc
// @Summary Get document download link
// @Description Issue a short lived signed download link for a document
// @Tags Visa
// @Produce json
// @Param id path string true "Visa request ID"
// @Param name path string true "Document name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /visa-requests/{id}/documents/{name}/link [get]
func (h *VisaHandler) DocumentLink(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	link, err := h.service.DocumentDownloadLink(c.Request.Context(), claims, c.Param("id"), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, link, nil)
}

// DownloadDocument godoc
// @Summary Download document
// @Description Stream a document file using a signed token
// @Tags Visa
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /visa-requests/download/{token} [get]
func (h *VisaHandler) DownloadDocument(c *gin.Context) {
	file, name, err := h.service.OpenDocument(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "cannot stat file"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, nil)
}
