package handlers

import (
	"errors"
	"net/http"

	"github.com/brightpath/brightpath-api/internal/middleware"
	"github.com/brightpath/brightpath-api/internal/models"
	"github.com/brightpath/brightpath-api/internal/services"
	apperrors "github.com/brightpath/brightpath-api/pkg/errors"
	"github.com/gin-gonic/gin"
)

type ContactHandler struct {
	service services.ContactServiceInterface
}

func NewContactHandler(service services.ContactServiceInterface) *ContactHandler {
	return &ContactHandler{service: service}
}

// ContactUs hands the raw body to the admission pipeline. Decoding happens
// there, after the rate limit stage.
func (h *ContactHandler) ContactUs(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "Request body too large", err)
			return
		}
		respondError(c, http.StatusBadRequest, services.MsgInvalidBody, apperrors.InvalidInputError("body", err.Error()))
		return
	}

	result := h.service.Submit(c.Request.Context(), &models.RawSubmission{
		ClientKey: middleware.ClientKey(c),
		UserAgent: c.Request.UserAgent(),
		Body:      body,
	})
	respondResult(c, result)
}
