package handler

import (
	"net/http"

	"clinicbill/internal/middleware"
	"clinicbill/internal/service"
	"clinicbill/pkg/pagination"
	"clinicbill/pkg/response"

	"github.com/gin-gonic/gin"
)

type PatientHandler struct {
	patientService service.PatientService
}

func NewPatientHandler(patientService service.PatientService) *PatientHandler {
	return &PatientHandler{patientService: patientService}
}

func (h *PatientHandler) RegisterRoutes(router *gin.RouterGroup) {
	patients := router.Group("/api/patients", middleware.RequireRole("admin", "doctor", "cashier"))
	{
		patients.POST("", h.CreatePatient)
		patients.GET("", h.ListPatients)
		patients.GET("/:id", h.GetPatient)
		patients.POST("/:id/records", middleware.RequireRole("admin", "doctor"), h.CreateRecord)
		patients.GET("/:id/records", h.ListRecords)
	}
}

// CreatePatient registers a new patient
// @Summary      Create patient
// @Description  Registers a new patient with the clinic
// @Tags         patients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreatePatientRequest  true  "Create Patient Payload"
// @Success      201      {object}  response.Response{data=service.PatientResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/patients [post]
func (h *PatientHandler) CreatePatient(c *gin.Context) {
	var req service.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	patient, err := h.patientService.CreatePatient(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, patient))
}

// ListPatients returns a paginated list of patients
// @Summary      List patients
// @Description  Retrieves a paginated list of patients
// @Tags         patients
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      500    {object}  response.Response
// @Router       /api/patients [get]
func (h *PatientHandler) ListPatients(c *gin.Context) {
	params := pagination.Parse(c)

	patients, total, err := h.patientService.ListPatients(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"patients": patients,
		"total":    total,
		"page":     params.Page,
		"limit":    params.Limit,
	}))
}

// GetPatient returns one patient by id
// @Summary      Get patient
// @Description  Retrieves a patient by ID
// @Tags         patients
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Patient ID"
// @Success      200  {object}  response.Response{data=service.PatientResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/patients/{id} [get]
func (h *PatientHandler) GetPatient(c *gin.Context) {
	patient, err := h.patientService.GetPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, patient))
}

// CreateRecord adds a medical record to a patient
// @Summary      Create medical record
// @Description  Adds a visit record to a patient; bills are opened against these records
// @Tags         patients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Patient ID"
// @Param        payload  body      service.CreateRecordRequest  true  "Create Record Payload"
// @Success      201      {object}  response.Response{data=service.MedicalRecordResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/patients/{id}/records [post]
func (h *PatientHandler) CreateRecord(c *gin.Context) {
	var req service.CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	record, err := h.patientService.CreateRecord(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, record))
}

// ListRecords returns a patient's medical records
// @Summary      List medical records
// @Description  Retrieves all medical records for a patient, newest first
// @Tags         patients
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Patient ID"
// @Success      200  {object}  response.Response{data=[]service.MedicalRecordResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/patients/{id}/records [get]
func (h *PatientHandler) ListRecords(c *gin.Context) {
	records, err := h.patientService.ListRecords(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, records))
}
