// internal/session/store.go

// Package session holds form sessions in memory. A session lives from the
// moment the form page opens until the report is submitted or the session is
// discarded; nothing is persisted anywhere.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tech-service-report-api-server/internal/dispatch"
	"tech-service-report-api-server/internal/models"
	"tech-service-report-api-server/internal/verification"
)

// State is the lifecycle position of one form session.
type State string

const (
	StateDraft      State = "draft"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
)

var (
	ErrNotFound             = errors.New("session not found")
	ErrAlreadySubmitted     = errors.New("report already submitted")
	ErrSubmitInFlight       = errors.New("a submit is already in flight")
	ErrIndexOutOfRange      = errors.New("index out of range")
	ErrUnknownCollection    = errors.New("unknown evidence collection")
	ErrVerificationMismatch = errors.New("verification code does not match")
)

// Session is one report draft plus its destination and lifecycle state.
type Session struct {
	ID               string
	Draft            models.ReportDraft
	Destination      string
	VerificationCode string
	State            State
	CreatedAt        time.Time
	SubmittedAt      time.Time
}

// DestinationValid reports whether submission is enabled for this session.
func (s *Session) DestinationValid() bool {
	return dispatch.ValidateDestination(s.Destination) == nil
}

// Store is the in-memory session registry. All mutations go through the
// store so they are serialized per session.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create opens a new session prefilled from the launch parameters. Missing
// parameters arrive as empty strings and are valid.
func (s *Store) Create(id, ciudad, nit, nombreEmpresa, destination string) *Session {
	sess := &Session{
		ID: uuid.NewString(),
		Draft: models.ReportDraft{
			Metadata: models.Metadata{
				ID:            strings.TrimSpace(id),
				Ciudad:        strings.TrimSpace(ciudad),
				NIT:           strings.TrimSpace(nit),
				NombreEmpresa: strings.TrimSpace(nombreEmpresa),
			},
		},
		Destination: strings.TrimSpace(destination),
		State:       StateDraft,
		CreatedAt:   time.Now().UTC(),
	}
	sess.VerificationCode = verification.Code(
		sess.Draft.Metadata.ID,
		sess.Draft.Metadata.Ciudad,
		sess.Draft.Metadata.NIT,
		sess.Draft.Metadata.NombreEmpresa,
	)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns a copy of the session.
func (s *Store) Get(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return copySession(sess), nil
}

// Delete discards a session and everything it holds.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// FieldsUpdate replaces the free-text sections of the draft.
type FieldsUpdate struct {
	DescripcionServicio             string
	TrabajoEnAlturas                models.AlturasInfo
	ObservacionesGenerales          string
	ActividadesPendientesONovedades string
}

// UpdateFields replaces the draft's text sections and the alturas flag.
func (s *Store) UpdateFields(id string, update FieldsUpdate) error {
	return s.mutate(id, func(sess *Session) error {
		sess.Draft.DescripcionServicio = update.DescripcionServicio
		sess.Draft.TrabajoEnAlturas = update.TrabajoEnAlturas
		sess.Draft.ObservacionesGenerales = update.ObservacionesGenerales
		sess.Draft.ActividadesPendientesONovedades = update.ActividadesPendientesONovedades
		return nil
	})
}

// AddEquipment appends one row and returns its index.
func (s *Store) AddEquipment(id string, item models.EquipmentItem) (int, error) {
	index := -1
	err := s.mutate(id, func(sess *Session) error {
		sess.Draft.Equipos = append(sess.Draft.Equipos, item)
		index = len(sess.Draft.Equipos) - 1
		return nil
	})
	return index, err
}

// ReplaceEquipment overwrites the row at index.
func (s *Store) ReplaceEquipment(id string, index int, item models.EquipmentItem) error {
	return s.mutate(id, func(sess *Session) error {
		if index < 0 || index >= len(sess.Draft.Equipos) {
			return ErrIndexOutOfRange
		}
		sess.Draft.Equipos[index] = item
		return nil
	})
}

// RemoveEquipment deletes the row at index, preserving the order of the
// remaining rows.
func (s *Store) RemoveEquipment(id string, index int) error {
	return s.mutate(id, func(sess *Session) error {
		if index < 0 || index >= len(sess.Draft.Equipos) {
			return ErrIndexOutOfRange
		}
		sess.Draft.Equipos = append(sess.Draft.Equipos[:index], sess.Draft.Equipos[index+1:]...)
		return nil
	})
}

// AddImage appends one photo to the named evidence collection
// (imagenesAntes, imagenesDurante or imagenesDespues).
func (s *Store) AddImage(id, collection string, img models.EvidenceImage) error {
	return s.mutate(id, func(sess *Session) error {
		col, ok := sess.Draft.Collection(collection)
		if !ok {
			return ErrUnknownCollection
		}
		*col = append(*col, img)
		return nil
	})
}

// RemoveImage deletes the photo at index from the named collection.
func (s *Store) RemoveImage(id, collection string, index int) error {
	return s.mutate(id, func(sess *Session) error {
		col, ok := sess.Draft.Collection(collection)
		if !ok {
			return ErrUnknownCollection
		}
		if index < 0 || index >= len(*col) {
			return ErrIndexOutOfRange
		}
		*col = append((*col)[:index], (*col)[index+1:]...)
		return nil
	})
}

// BeginSubmit checks every submit precondition and, if they hold, moves the
// session to StateSubmitting and returns a snapshot of the draft and the
// destination for the caller to send. Exactly one submit can be in flight.
func (s *Store) BeginSubmit(id, enteredCode string) (models.ReportDraft, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return models.ReportDraft{}, "", ErrNotFound
	}
	switch sess.State {
	case StateSubmitting:
		return models.ReportDraft{}, "", ErrSubmitInFlight
	case StateSubmitted:
		return models.ReportDraft{}, "", ErrAlreadySubmitted
	}
	if err := dispatch.ValidateDestination(sess.Destination); err != nil {
		return models.ReportDraft{}, "", err
	}
	if !verification.Matches(sess.VerificationCode, enteredCode) {
		return models.ReportDraft{}, "", ErrVerificationMismatch
	}
	sess.State = StateSubmitting
	return copyDraft(&sess.Draft), sess.Destination, nil
}

// FinishSubmit records the outcome of the in-flight submit. On success the
// session becomes terminal; on failure the draft stays editable for retry.
func (s *Store) FinishSubmit(id string, success bool, submittedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.State != StateSubmitting {
		return
	}
	if success {
		sess.State = StateSubmitted
		sess.SubmittedAt = submittedAt.UTC()
		sess.Draft.Metadata.SubmittedAt = submittedAt.UTC().Format(time.RFC3339)
		return
	}
	sess.State = StateDraft
}

// mutate applies fn to a live session while it is still editable.
func (s *Store) mutate(id string, fn func(*Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	switch sess.State {
	case StateSubmitting:
		return ErrSubmitInFlight
	case StateSubmitted:
		return ErrAlreadySubmitted
	}
	return fn(sess)
}

func copySession(sess *Session) Session {
	out := *sess
	out.Draft = copyDraft(&sess.Draft)
	return out
}

// copyDraft clones the slices so callers outside the lock cannot race with
// later edits. Image bytes are shared; they are never mutated after upload.
func copyDraft(d *models.ReportDraft) models.ReportDraft {
	out := *d
	out.Equipos = append([]models.EquipmentItem(nil), d.Equipos...)
	out.ImagenesAntes = append([]models.EvidenceImage(nil), d.ImagenesAntes...)
	out.ImagenesDurante = append([]models.EvidenceImage(nil), d.ImagenesDurante...)
	out.ImagenesDespues = append([]models.EvidenceImage(nil), d.ImagenesDespues...)
	return out
}
