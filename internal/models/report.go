// internal/models/report.go
package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Metadata carries the client fields received through the launch URL plus
// the submission timestamp, which stays empty until the report is sent.
type Metadata struct {
	ID            string `json:"id"`
	Ciudad        string `json:"ciudad"`
	NIT           string `json:"nit"`
	NombreEmpresa string `json:"nombreEmpresa"`
	SubmittedAt   string `json:"submittedAt"`
}

// EquipmentItem is one row of the installed equipment/materials table.
type EquipmentItem struct {
	Nombre        string `json:"nombre"`
	Cantidad      int    `json:"cantidad"`
	Unidad        string `json:"unidad"`
	Marca         string `json:"marca"`
	Modelo        string `json:"modelo"`
	Serial        string `json:"serial"`
	Observaciones string `json:"observaciones"`
}

// Trimmed returns a copy with surrounding whitespace removed from every
// text field.
func (e EquipmentItem) Trimmed() EquipmentItem {
	e.Nombre = strings.TrimSpace(e.Nombre)
	e.Unidad = strings.TrimSpace(e.Unidad)
	e.Marca = strings.TrimSpace(e.Marca)
	e.Modelo = strings.TrimSpace(e.Modelo)
	e.Serial = strings.TrimSpace(e.Serial)
	e.Observaciones = strings.TrimSpace(e.Observaciones)
	return e
}

// AlturasInfo records whether the service involved work at heights.
// Detalles is meaningful only when Requiere is true.
type AlturasInfo struct {
	Requiere bool   `json:"requiere"`
	Detalles string `json:"detalles"`
}

// EvidenceImage is one uploaded photo, held in memory until submit.
type EvidenceImage struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Multipart part names of the three evidence collections.
const (
	CollectionAntes   = "imagenesAntes"
	CollectionDurante = "imagenesDurante"
	CollectionDespues = "imagenesDespues"
)

// CollectionName maps a URL segment (antes/durante/despues) to the
// multipart part name of that evidence collection.
func CollectionName(segment string) (string, bool) {
	switch segment {
	case "antes":
		return CollectionAntes, true
	case "durante":
		return CollectionDurante, true
	case "despues":
		return CollectionDespues, true
	}
	return "", false
}

// ReportDraft is the editable in-memory state of a report before it is
// submitted. Nothing here survives the session.
type ReportDraft struct {
	Metadata                        Metadata
	DescripcionServicio             string
	Equipos                         []EquipmentItem
	TrabajoEnAlturas                AlturasInfo
	ObservacionesGenerales          string
	ActividadesPendientesONovedades string
	ImagenesAntes                   []EvidenceImage
	ImagenesDurante                 []EvidenceImage
	ImagenesDespues                 []EvidenceImage
}

// Collection returns a pointer to the named evidence collection so callers
// can append to or remove from it in place.
func (d *ReportDraft) Collection(name string) (*[]EvidenceImage, bool) {
	switch name {
	case CollectionAntes:
		return &d.ImagenesAntes, true
	case CollectionDurante:
		return &d.ImagenesDurante, true
	case CollectionDespues:
		return &d.ImagenesDespues, true
	}
	return nil, false
}

// ReportPayload is the JSON document sent as the "payload" part of the
// outbound multipart request. Field order matches the wire schema.
type ReportPayload struct {
	Metadata                        Metadata        `json:"metadata"`
	DescripcionServicio             string          `json:"descripcionServicio"`
	EquiposMaterialesInstalados     []EquipmentItem `json:"equiposMaterialesInstalados"`
	TrabajoEnAlturas                AlturasInfo     `json:"trabajoEnAlturas"`
	ObservacionesGenerales          string          `json:"observacionesGenerales"`
	ActividadesPendientesONovedades string          `json:"actividadesPendientesONovedades"`
}

// BuildPayload assembles the submission document from the draft. Every row
// the user entered is kept, in entry order.
func (d *ReportDraft) BuildPayload(submittedAt time.Time) ReportPayload {
	meta := d.Metadata
	meta.SubmittedAt = submittedAt.UTC().Format(time.RFC3339)

	items := make([]EquipmentItem, 0, len(d.Equipos))
	for _, item := range d.Equipos {
		items = append(items, item.Trimmed())
	}

	return ReportPayload{
		Metadata:                    meta,
		DescripcionServicio:         strings.TrimSpace(d.DescripcionServicio),
		EquiposMaterialesInstalados: items,
		TrabajoEnAlturas: AlturasInfo{
			Requiere: d.TrabajoEnAlturas.Requiere,
			Detalles: strings.TrimSpace(d.TrabajoEnAlturas.Detalles),
		},
		ObservacionesGenerales:          strings.TrimSpace(d.ObservacionesGenerales),
		ActividadesPendientesONovedades: strings.TrimSpace(d.ActividadesPendientesONovedades),
	}
}

// TemplateSubmittedAt is the fixed placeholder timestamp of the downloadable
// template, so repeated downloads are byte-identical.
const TemplateSubmittedAt = "1970-01-01T00:00:00Z"

// Template builds the example document offered for download. It carries the
// given metadata, placeholder empty values everywhere else, and a fixed
// timestamp.
func Template(meta Metadata) ReportPayload {
	meta.SubmittedAt = TemplateSubmittedAt
	return ReportPayload{
		Metadata:                    meta,
		EquiposMaterialesInstalados: []EquipmentItem{},
	}
}

// EncodePayload marshals the document the way it travels on the wire:
// compact, UTF-8 intact, no HTML escaping.
func EncodePayload(p ReportPayload) ([]byte, error) {
	return encode(p, "")
}

// EncodeTemplate marshals the template document with two-space indentation
// for human reading.
func EncodeTemplate(p ReportPayload) ([]byte, error) {
	return encode(p, "  ")
}

func encode(p ReportPayload, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
