package handlers

import (
	"net/http"

	"github.com/brightpath/brightpath-api/internal/middleware"
	"github.com/brightpath/brightpath-api/internal/models"
	"github.com/brightpath/brightpath-api/internal/services"
	apperrors "github.com/brightpath/brightpath-api/pkg/errors"
	"github.com/gin-gonic/gin"
)

const msgTestFormFields = "First name, last name, email, and phone are required"

type TestFormHandler struct {
	service services.ContactServiceInterface
}

func NewTestFormHandler(service services.ContactServiceInterface) *TestFormHandler {
	return &TestFormHandler{service: service}
}

func (h *TestFormHandler) Submit(c *gin.Context) {
	var req models.TestFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		details := ParseValidationErrors(err)
		if len(details) == 0 {
			respondError(c, http.StatusBadRequest, services.MsgInvalidBody, apperrors.InvalidInputError("body", err.Error()))
			return
		}
		respondErrorWithDetails(c, http.StatusBadRequest, msgTestFormFields, details,
			apperrors.InvalidInputError(details[0].Field, details[0].Message))
		return
	}

	result := h.service.SubmitTestForm(c.Request.Context(), middleware.ClientKey(c), c.Request.UserAgent(), &req)
	respondResult(c, result)
}
