// internal/api/handlers/template_handler.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tech-service-report-api-server/internal/models"
)

type TemplateHandler struct{}

// Download returns the example payload document as an attachment. The
// output is a pure function of the query parameters: identical requests
// produce byte-identical files.
func (h *TemplateHandler) Download(c *gin.Context) {
	meta := models.Metadata{
		ID:            strings.TrimSpace(c.Query("id")),
		Ciudad:        strings.TrimSpace(c.Query("ciudad")),
		NIT:           strings.TrimSpace(c.Query("nit")),
		NombreEmpresa: strings.TrimSpace(c.Query("nombreEmpresa")),
	}
	doc, err := models.EncodeTemplate(models.Template(meta))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode template", "details": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="reporte_servicio.json"`)
	c.Data(http.StatusOK, "application/json; charset=utf-8", doc)
}
