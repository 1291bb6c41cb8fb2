package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/credentia/certportal-backend/internal/middleware"
	"github.com/credentia/certportal-backend/internal/model"
	"github.com/credentia/certportal-backend/internal/response"
	"github.com/credentia/certportal-backend/internal/service"
)

// CertificateHandler handles certificate listing, download and the public
// QR verification endpoint.
type CertificateHandler struct {
	certs *service.CertificateService
}

// NewCertificateHandler creates a new CertificateHandler.
func NewCertificateHandler(certs *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certs: certs}
}

// ListMine godoc
// GET /api/v1/student/certificates
// The caller's certificates, newest first.
func (h *CertificateHandler) ListMine(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	certs, err := h.certs.ListStudentCertificates(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}

	if certs == nil {
		certs = []model.StudentCertificateRow{}
	}
	response.Success(c, http.StatusOK, gin.H{"certificates": certs})
}

// Download godoc
// GET /api/v1/student/certificates/:certificate_id/download
// Streams the owned certificate PDF.
func (h *CertificateHandler) Download(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	certificateID, err := uuid.Parse(c.Param("certificate_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	path, filename, err := h.certs.StudentDownload(c.Request.Context(), certificateID, claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}

	c.FileAttachment(path, filename)
}

// Verify godoc
// GET /api/v1/verify/:certificate_no?token=...
// Public endpoint behind the certificate's QR code. Unknown numbers and
// wrong tokens both yield valid=false with HTTP 200.
func (h *CertificateHandler) Verify(c *gin.Context) {
	certificateNo := c.Param("certificate_no")
	token := c.Query("token")

	verdict, err := h.certs.Verify(c.Request.Context(), certificateNo, token)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, verdict)
}
