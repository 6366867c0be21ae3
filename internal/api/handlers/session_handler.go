// internal/api/handlers/session_handler.go
package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tech-service-report-api-server/internal/dispatch"
	"tech-service-report-api-server/internal/metrics"
	"tech-service-report-api-server/internal/models"
	"tech-service-report-api-server/internal/session"
)

type SessionHandler struct {
	Store  *session.Store
	Sender *dispatch.Sender
	Logger *zap.Logger
}

// --- Request bodies ---

type EquipmentRequest struct {
	Nombre        string `json:"nombre"`
	Cantidad      int    `json:"cantidad" binding:"gte=0"`
	Unidad        string `json:"unidad"`
	Marca         string `json:"marca"`
	Modelo        string `json:"modelo"`
	Serial        string `json:"serial"`
	Observaciones string `json:"observaciones"`
}

func (r EquipmentRequest) item() models.EquipmentItem {
	return models.EquipmentItem{
		Nombre:        r.Nombre,
		Cantidad:      r.Cantidad,
		Unidad:        r.Unidad,
		Marca:         r.Marca,
		Modelo:        r.Modelo,
		Serial:        r.Serial,
		Observaciones: r.Observaciones,
	}
}

type DraftFieldsRequest struct {
	DescripcionServicio             string             `json:"descripcionServicio"`
	TrabajoEnAlturas                models.AlturasInfo `json:"trabajoEnAlturas"`
	ObservacionesGenerales          string             `json:"observacionesGenerales"`
	ActividadesPendientesONovedades string             `json:"actividadesPendientesONovedades"`
}

type SubmitRequest struct {
	CodigoVerificacion string `json:"codigoVerificacion"`
}

// --- Response shapes ---

type ImageView struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

type SessionView struct {
	SessionID                       string                 `json:"sessionID"`
	Metadata                        models.Metadata        `json:"metadata"`
	DescripcionServicio             string                 `json:"descripcionServicio"`
	Equipos                         []models.EquipmentItem `json:"equiposMaterialesInstalados"`
	TrabajoEnAlturas                models.AlturasInfo     `json:"trabajoEnAlturas"`
	ObservacionesGenerales          string                 `json:"observacionesGenerales"`
	ActividadesPendientesONovedades string                 `json:"actividadesPendientesONovedades"`
	Imagenes                        map[string][]ImageView `json:"imagenes"`
	PostURL                         string                 `json:"postURL"`
	DestinationValid                bool                   `json:"destinationValid"`
	State                           session.State          `json:"state"`
}

func viewOf(sess session.Session) SessionView {
	images := make(map[string][]ImageView, 3)
	for _, name := range []string{models.CollectionAntes, models.CollectionDurante, models.CollectionDespues} {
		col, _ := sess.Draft.Collection(name)
		views := make([]ImageView, 0, len(*col))
		for _, img := range *col {
			views = append(views, ImageView{Filename: img.Filename, ContentType: img.ContentType, Size: len(img.Data)})
		}
		images[name] = views
	}
	equipos := sess.Draft.Equipos
	if equipos == nil {
		equipos = []models.EquipmentItem{}
	}
	return SessionView{
		SessionID:                       sess.ID,
		Metadata:                        sess.Draft.Metadata,
		DescripcionServicio:             sess.Draft.DescripcionServicio,
		Equipos:                         equipos,
		TrabajoEnAlturas:                sess.Draft.TrabajoEnAlturas,
		ObservacionesGenerales:          sess.Draft.ObservacionesGenerales,
		ActividadesPendientesONovedades: sess.Draft.ActividadesPendientesONovedades,
		Imagenes:                        images,
		PostURL:                         sess.Destination,
		DestinationValid:                sess.DestinationValid(),
		State:                           sess.State,
	}
}

// --- Handlers ---

// CreateSession opens a session from the launch query parameters. Missing
// parameters default to empty strings and never fail.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	sess := h.Store.Create(
		c.Query("id"),
		c.Query("ciudad"),
		c.Query("nit"),
		c.Query("nombreEmpresa"),
		c.Query("POSTURL"),
	)
	metrics.SessionsCreated.Inc()

	view := viewOf(*sess)
	c.JSON(http.StatusCreated, gin.H{
		"session": view,
		// Exposed so link generators can verify their side; see the
		// original form's test popover.
		"verificationCode": sess.VerificationCode,
	})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, err := h.Store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

func (h *SessionHandler) DiscardSession(c *gin.Context) {
	if err := h.Store.Delete(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *SessionHandler) UpdateDraftFields(c *gin.Context) {
	var req DraftFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.Store.UpdateFields(c.Param("id"), session.FieldsUpdate{
		DescripcionServicio:             req.DescripcionServicio,
		TrabajoEnAlturas:                req.TrabajoEnAlturas,
		ObservacionesGenerales:          req.ObservacionesGenerales,
		ActividadesPendientesONovedades: req.ActividadesPendientesONovedades,
	})
	if err != nil {
		c.JSON(storeErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *SessionHandler) AddEquipment(c *gin.Context) {
	var req EquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid equipment item", "details": err.Error()})
		return
	}
	index, err := h.Store.AddEquipment(c.Param("id"), req.item())
	if err != nil {
		c.JSON(storeErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "index": index})
}

func (h *SessionHandler) ReplaceEquipment(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var req EquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid equipment item", "details": err.Error()})
		return
	}
	if err := h.Store.ReplaceEquipment(c.Param("id"), index, req.item()); err != nil {
		c.JSON(storeErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *SessionHandler) RemoveEquipment(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	if err := h.Store.RemoveEquipment(c.Param("id"), index); err != nil {
		c.JSON(storeErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// UploadImages adds the files of the multipart field "files" to the
// collection named in the URL (antes, durante or despues).
func (h *SessionHandler) UploadImages(c *gin.Context) {
	collection, ok := models.CollectionName(c.Param("coleccion"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": session.ErrUnknownCollection.Error()})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form", "details": err.Error()})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files in field 'files'"})
		return
	}

	added := make([]ImageView, 0, len(files))
	for _, fh := range files {
		img, err := readImage(fh.Filename, fh.Header.Get("Content-Type"), func() (io.ReadCloser, error) { return fh.Open() })
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "filename": fh.Filename})
			return
		}
		if err := h.Store.AddImage(c.Param("id"), collection, img); err != nil {
			c.JSON(storeErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		added = append(added, ImageView{Filename: img.Filename, ContentType: img.ContentType, Size: len(img.Data)})
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "added": added})
}

func (h *SessionHandler) RemoveImage(c *gin.Context) {
	collection, ok := models.CollectionName(c.Param("coleccion"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": session.ErrUnknownCollection.Error()})
		return
	}
	index, ok := indexParam(c)
	if !ok {
		return
	}
	if err := h.Store.RemoveImage(c.Param("id"), collection, index); err != nil {
		c.JSON(storeErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// Submit performs the one outbound POST for this session. On any failure
// the draft stays editable and no retry is attempted.
func (h *SessionHandler) Submit(c *gin.Context) {
	sessionID := c.Param("id")

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft, destination, err := h.Store.BeginSubmit(sessionID, req.CodigoVerificacion)
	if err != nil {
		metrics.Submits.WithLabelValues(metrics.OutcomeRejected).Inc()
		c.JSON(storeErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	submittedAt := time.Now().UTC()
	payload := draft.BuildPayload(submittedAt)
	status, err := h.Sender.Send(c.Request.Context(), destination, payload,
		draft.ImagenesAntes, draft.ImagenesDurante, draft.ImagenesDespues)

	var statusErr *dispatch.StatusError
	switch {
	case err == nil:
		h.Store.FinishSubmit(sessionID, true, submittedAt)
		metrics.Submits.WithLabelValues(metrics.OutcomeSuccess).Inc()
		h.Logger.Info("report submitted",
			zap.String("session_id", sessionID),
			zap.Int("status", status))
		c.JSON(http.StatusOK, gin.H{
			"status":      "success",
			"statusCode":  status,
			"submittedAt": payload.Metadata.SubmittedAt,
		})
	case errors.As(err, &statusErr):
		h.Store.FinishSubmit(sessionID, false, submittedAt)
		metrics.Submits.WithLabelValues(metrics.OutcomeUpstream).Inc()
		h.Logger.Warn("destination rejected report",
			zap.String("session_id", sessionID),
			zap.Int("status", statusErr.StatusCode))
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      "destination returned a non-success status",
			"statusCode": statusErr.StatusCode,
		})
	default:
		h.Store.FinishSubmit(sessionID, false, submittedAt)
		metrics.Submits.WithLabelValues(metrics.OutcomeNetwork).Inc()
		h.Logger.Warn("report delivery failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "could not reach the destination",
			"details": err.Error(),
		})
	}
}

// --- Helpers ---

// allowedImageExts mirrors the upload widget's accepted types.
var allowedImageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

var allowedImageMIMEs = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// readImage loads one uploaded file, fills in a sniffed content type when
// the client declared none, and rejects anything that is not an accepted
// image type.
func readImage(filename, declaredType string, open func() (io.ReadCloser, error)) (models.EvidenceImage, error) {
	f, err := open()
	if err != nil {
		return models.EvidenceImage{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return models.EvidenceImage{}, err
	}

	contentType := strings.TrimSpace(declaredType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}
	// The detected type can carry parameters (e.g. charset); compare the
	// bare media type.
	bare := contentType
	if i := strings.IndexByte(bare, ';'); i >= 0 {
		bare = strings.TrimSpace(bare[:i])
	}
	if !allowedImageMIMEs[bare] && !allowedImageExts[strings.ToLower(filepath.Ext(filename))] {
		return models.EvidenceImage{}, errors.New("only png, jpg, jpeg or webp images are accepted")
	}

	if filename == "" {
		filename = "image"
	}
	return models.EvidenceImage{Filename: filepath.Base(filename), ContentType: contentType, Data: data}, nil
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return 0, false
	}
	return index, true
}

// storeErrorStatus maps store errors to HTTP statuses: unknown session is
// 404, lifecycle conflicts are 409, failed submit preconditions are 422.
func storeErrorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrAlreadySubmitted), errors.Is(err, session.ErrSubmitInFlight):
		return http.StatusConflict
	case errors.Is(err, dispatch.ErrInvalidDestination), errors.Is(err, session.ErrVerificationMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrIndexOutOfRange), errors.Is(err, session.ErrUnknownCollection):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
