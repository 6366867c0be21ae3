// internal/api/handlers/form_handler.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type FormHandler struct{}

// Show serves the single-page form. The page reads its own query string and
// opens a session against the API; the server only prefills the title bar.
func (h *FormHandler) Show(c *gin.Context) {
	c.HTML(http.StatusOK, "form.html", gin.H{
		"ID":            c.Query("id"),
		"Ciudad":        c.Query("ciudad"),
		"NIT":           c.Query("nit"),
		"NombreEmpresa": c.Query("nombreEmpresa"),
		"PostURL":       c.Query("POSTURL"),
	})
}
