package handler

import (
	"errors"
	"net/http"

	"clinicbill/internal/billing"
	"clinicbill/internal/middleware"
	"clinicbill/internal/service"
	"clinicbill/pkg/pagination"
	"clinicbill/pkg/response"

	"github.com/gin-gonic/gin"
)

type BillingHandler struct {
	billingService service.BillingService
}

func NewBillingHandler(billingService service.BillingService) *BillingHandler {
	return &BillingHandler{billingService: billingService}
}

func (h *BillingHandler) RegisterRoutes(router *gin.RouterGroup) {
	sessions := router.Group("/api/billing/sessions", middleware.RequireRole("admin", "doctor", "cashier"))
	{
		sessions.POST("", h.OpenSession)
		sessions.GET("/:id", h.GetSession)
		sessions.POST("/:id/items", h.AddItem)
		sessions.PATCH("/:id/items/:itemID", h.UpdateItem)
		sessions.DELETE("/:id/items/:itemID", h.RemoveItem)
		sessions.POST("/:id/confirm", h.Confirm)
		sessions.POST("/:id/cancel", h.Cancel)
	}

	bills := router.Group("/api/bills", middleware.RequireRole("admin", "cashier"))
	{
		bills.GET("", h.ListBills)
		bills.GET("/:id", h.GetBill)
		bills.PUT("/:id/pay", h.PayBill)
	}
}

// OpenSession opens a new bill editor session
// @Summary      Open billing session
// @Description  Opens a bill editor session for a patient and medical record. Any previously active session is closed.
// @Tags         billing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.OpenSessionRequest  true  "Open Session Payload"
// @Success      201      {object}  response.Response{data=service.SessionResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/billing/sessions [post]
func (h *BillingHandler) OpenSession(c *gin.Context) {
	var req service.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	sess, err := h.billingService.OpenSession(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, sess))
}

// GetSession returns the current state of an editor session
// @Summary      Get billing session
// @Description  Returns the current items and total of an open editor session
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  response.Response{data=service.SessionResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/billing/sessions/{id} [get]
func (h *BillingHandler) GetSession(c *gin.Context) {
	sess, err := h.billingService.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(sessionErrorStatus(err), response.Error(sessionErrorStatus(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, sess))
}

// AddItem appends a line item to the session
// @Summary      Add line item
// @Description  Appends a new line item to the session. Omitted fields take defaults (quantity 1, price 0).
// @Tags         billing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Session ID"
// @Param        payload  body      service.AddItemRequest  true  "Line Item Fields"
// @Success      201      {object}  response.Response{data=service.SessionResponse}
// @Failure      404      {object}  response.Response
// @Router       /api/billing/sessions/{id}/items [post]
func (h *BillingHandler) AddItem(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	sess, err := h.billingService.AddItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.JSON(sessionErrorStatus(err), response.Error(sessionErrorStatus(err), err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, sess))
}

// UpdateItem sets a single field of a line item
// @Summary      Update line item field
// @Description  Sets one field of a line item from a raw value. Non-numeric quantity or price is stored as 0, never rejected. Unknown item ids are a no-op.
// @Tags         billing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Session ID"
// @Param        itemID   path      string                     true  "Item ID"
// @Param        payload  body      service.UpdateItemRequest  true  "Field Update"
// @Success      200      {object}  response.Response{data=service.SessionResponse}
// @Failure      404      {object}  response.Response
// @Router       /api/billing/sessions/{id}/items/{itemID} [patch]
func (h *BillingHandler) UpdateItem(c *gin.Context) {
	var req service.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	sess, err := h.billingService.UpdateItem(c.Request.Context(), c.Param("id"), c.Param("itemID"), req)
	if err != nil {
		c.JSON(sessionErrorStatus(err), response.Error(sessionErrorStatus(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, sess))
}

// RemoveItem deletes a line item from the session
// @Summary      Remove line item
// @Description  Removes a line item. Unknown item ids are a no-op.
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        id      path      string  true  "Session ID"
// @Param        itemID  path      string  true  "Item ID"
// @Success      200     {object}  response.Response{data=service.SessionResponse}
// @Failure      404     {object}  response.Response
// @Router       /api/billing/sessions/{id}/items/{itemID} [delete]
func (h *BillingHandler) RemoveItem(c *gin.Context) {
	sess, err := h.billingService.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("itemID"))
	if err != nil {
		c.JSON(sessionErrorStatus(err), response.Error(sessionErrorStatus(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, sess))
}

// Confirm validates and finalizes the session into a persistent bill
// @Summary      Confirm billing session
// @Description  Validates the items, persists the finalized bill and returns the normalized payload. Validation failure leaves the session editable.
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  response.Response{data=service.ConfirmResponse}
// @Failure      404  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /api/billing/sessions/{id}/confirm [post]
func (h *BillingHandler) Confirm(c *gin.Context) {
	result, err := h.billingService.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := sessionErrorStatus(err)
		if errors.Is(err, billing.ErrEmptyBill) || errors.Is(err, billing.ErrIncompleteItem) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// Cancel abandons the session
// @Summary      Cancel billing session
// @Description  Abandons the session without producing a bill
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/billing/sessions/{id}/cancel [post]
func (h *BillingHandler) Cancel(c *gin.Context) {
	if err := h.billingService.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(sessionErrorStatus(err), response.Error(sessionErrorStatus(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"cancelled": true}))
}

// ListBills returns a paginated list of finalized bills
// @Summary      List bills
// @Description  Retrieves finalized bills, optionally filtered by status or patient
// @Tags         bills
// @Security     BearerAuth
// @Produce      json
// @Param        status      query     string  false  "Filter by status (UNPAID, PAID)"
// @Param        patient_id  query     string  false  "Filter by patient id"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 20)"
// @Success      200         {object}  response.Response{data=object}
// @Failure      500         {object}  response.Response
// @Router       /api/bills [get]
func (h *BillingHandler) ListBills(c *gin.Context) {
	params := pagination.Parse(c)

	bills, total, err := h.billingService.ListBills(c.Request.Context(), service.BillFilter{
		Status:    c.Query("status"),
		PatientID: c.Query("patient_id"),
		Page:      params.Page,
		Limit:     params.Limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"bills": bills,
		"total": total,
		"page":  params.Page,
		"limit": params.Limit,
	}))
}

// GetBill returns one finalized bill with its items
// @Summary      Get bill
// @Description  Retrieves a finalized bill by ID, including its line items
// @Tags         bills
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Bill ID"
// @Success      200  {object}  response.Response{data=service.BillResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/bills/{id} [get]
func (h *BillingHandler) GetBill(c *gin.Context) {
	bill, err := h.billingService.GetBill(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, bill))
}

// PayBill marks an unpaid bill as paid
// @Summary      Pay bill
// @Description  Marks an UNPAID bill as PAID, recording the payment method and provider transaction id
// @Tags         bills
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Bill ID"
// @Param        payload  body      service.PayBillRequest  true  "Payment Details"
// @Success      200      {object}  response.Response{data=service.BillResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/bills/{id}/pay [put]
func (h *BillingHandler) PayBill(c *gin.Context) {
	var req service.PayBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	bill, err := h.billingService.PayBill(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, bill))
}

func sessionErrorStatus(err error) int {
	if errors.Is(err, service.ErrSessionNotFound) || errors.Is(err, billing.ErrClosed) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}
