package handler

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/tutor-billing-api/pkg/errors"
	"github.com/noah-isme/tutor-billing-api/pkg/response"
)

type reportOpener interface {
	Open(token string) (*os.File, string, error)
}

// ReportHandler serves stored sweep reports behind signed links.
type ReportHandler struct {
	reports reportOpener
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportOpener) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Download godoc
// @Summary Download a stored overdue report
// @Description The token comes from the report_url of a sweep result and expires.
// @Tags Reports
// @Produce text/csv
// @Param token path string true "Signed report token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	file, name, err := h.reports.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read report"))
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
	})
}
