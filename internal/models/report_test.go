package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPayload(t *testing.T) {
	draft := ReportDraft{
		Metadata:            Metadata{ID: "OS-1", Ciudad: "Bogota", NIT: "900123456", NombreEmpresa: "Acme"},
		DescripcionServicio: "  Cambio de router  ",
		Equipos: []EquipmentItem{
			{Nombre: "Router ", Cantidad: 1, Unidad: "pcs", Marca: "X", Modelo: "Y", Serial: "Z"},
			{Nombre: "Cable UTP", Cantidad: 20, Unidad: "m"},
		},
		TrabajoEnAlturas:       AlturasInfo{Requiere: true, Detalles: " arnés "},
		ObservacionesGenerales: "ok",
	}

	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	payload := draft.BuildPayload(at)

	assert.Equal(t, "2024-05-06T07:08:09Z", payload.Metadata.SubmittedAt)
	assert.Equal(t, "Cambio de router", payload.DescripcionServicio)
	require.Len(t, payload.EquiposMaterialesInstalados, 2)
	assert.Equal(t, "Router", payload.EquiposMaterialesInstalados[0].Nombre)
	assert.Equal(t, "Cable UTP", payload.EquiposMaterialesInstalados[1].Nombre)
	assert.Equal(t, "arnés", payload.TrabajoEnAlturas.Detalles)
	// The draft itself is not mutated.
	assert.Equal(t, "Router ", draft.Equipos[0].Nombre)
	assert.Empty(t, draft.Metadata.SubmittedAt)
}

func TestBuildPayloadKeepsRowOrderAndCount(t *testing.T) {
	draft := ReportDraft{}
	for _, name := range []string{"a", "b", "c", ""} {
		draft.Equipos = append(draft.Equipos, EquipmentItem{Nombre: name})
	}
	payload := draft.BuildPayload(time.Now())
	require.Len(t, payload.EquiposMaterialesInstalados, 4)
	for i, name := range []string{"a", "b", "c", ""} {
		assert.Equal(t, name, payload.EquiposMaterialesInstalados[i].Nombre)
	}
}

func TestEncodePayloadWireFormat(t *testing.T) {
	draft := ReportDraft{
		Metadata:            Metadata{ID: "OS-1", Ciudad: "Bogota", NIT: "900123456", NombreEmpresa: "Acme"},
		DescripcionServicio: "Cambio de router",
		Equipos: []EquipmentItem{
			{Nombre: "Router", Cantidad: 1, Unidad: "pcs", Marca: "X", Modelo: "Y", Serial: "Z"},
		},
	}
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	doc, err := EncodePayload(draft.BuildPayload(at))
	require.NoError(t, err)

	want := `{"metadata":{"id":"OS-1","ciudad":"Bogota","nit":"900123456","nombreEmpresa":"Acme","submittedAt":"2024-05-06T07:08:09Z"},` +
		`"descripcionServicio":"Cambio de router",` +
		`"equiposMaterialesInstalados":[{"nombre":"Router","cantidad":1,"unidad":"pcs","marca":"X","modelo":"Y","serial":"Z","observaciones":""}],` +
		`"trabajoEnAlturas":{"requiere":false,"detalles":""},` +
		`"observacionesGenerales":"",` +
		`"actividadesPendientesONovedades":""}`
	assert.Equal(t, want, string(doc))
}

func TestEncodePayloadKeepsUTF8(t *testing.T) {
	payload := ReportPayload{
		DescripcionServicio:         "Instalación de señalización",
		EquiposMaterialesInstalados: []EquipmentItem{},
	}
	doc, err := EncodePayload(payload)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "Instalación de señalización")
}

func TestTemplateDeterministic(t *testing.T) {
	meta := Metadata{ID: "OS-9", Ciudad: "Cali"}
	first, err := EncodeTemplate(Template(meta))
	require.NoError(t, err)
	second, err := EncodeTemplate(Template(meta))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTemplateRoundTrip(t *testing.T) {
	doc, err := EncodeTemplate(Template(Metadata{}))
	require.NoError(t, err)

	var payload ReportPayload
	require.NoError(t, json.Unmarshal(doc, &payload))
	assert.Equal(t, TemplateSubmittedAt, payload.Metadata.SubmittedAt)
	assert.NotNil(t, payload.EquiposMaterialesInstalados)
	assert.Empty(t, payload.EquiposMaterialesInstalados)

	// The template is itself a valid submission document.
	_, err = EncodePayload(payload)
	require.NoError(t, err)
}

func TestTemplateEncodesEmptyArray(t *testing.T) {
	doc, err := EncodeTemplate(Template(Metadata{}))
	require.NoError(t, err)
	assert.Contains(t, string(doc), `"equiposMaterialesInstalados": []`)
}

func TestCollectionName(t *testing.T) {
	tests := []struct {
		segment string
		want    string
		ok      bool
	}{
		{"antes", CollectionAntes, true},
		{"durante", CollectionDurante, true},
		{"despues", CollectionDespues, true},
		{"otro", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := CollectionName(tt.segment)
		assert.Equal(t, tt.ok, ok, tt.segment)
		assert.Equal(t, tt.want, got, tt.segment)
	}
}
