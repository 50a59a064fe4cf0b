package sos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/domain/identity"
	"github.com/medicore/medicore/internal/domain/notification"
	"github.com/medicore/medicore/internal/platform/websocket"
)

var (
	ErrInvalidSeverity   = errors.New("severity must be between 1 and 5")
	ErrInvalidStatus     = errors.New("invalid sos alert status")
	ErrInvalidTransition = errors.New("sos alert cannot move to the requested state")
	ErrPatientRequired   = errors.New("patient id is required")
)

const alertTitle = "SOS Emergency Alert"

var (
	alertChannels = []string{websocket.ChannelDoctors, websocket.ChannelPharmacy, websocket.ChannelAdmin}
	ackChannels   = []string{websocket.ChannelPatients}

	// responderRoles receive an inbox entry for every new alert.
	responderRoles = []string{identity.RoleAdmin, identity.RoleDoctor, identity.RoleReceptionist}
)

// NotificationRecorder stores inbox rows for staff.
type NotificationRecorder interface {
	Record(ctx context.Context, n *notification.Notification) error
}

// Service runs the emergency alert lifecycle:
// active -> acknowledged -> resolved, or active -> resolved.
type Service struct {
	alerts   AlertRepository
	patients identity.PatientRepository
	users    identity.UserRepository
	notifier NotificationRecorder
	events   websocket.Publisher
	logger   zerolog.Logger
	nowFn    func() time.Time
}

func NewService(alerts AlertRepository, patients identity.PatientRepository, users identity.UserRepository, notifier NotificationRecorder) *Service {
	return &Service{
		alerts:   alerts,
		patients: patients,
		users:    users,
		notifier: notifier,
		events:   websocket.NopPublisher{},
		logger:   zerolog.Nop(),
		nowFn:    time.Now,
	}
}

func (s *Service) SetPublisher(p websocket.Publisher) {
	s.events = websocket.OrNop(p)
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "sos").Logger()
}

// Create raises an alert, broadcasts it to every staff portal and leaves an
// inbox entry for each active responder.
func (s *Service) Create(ctx context.Context, in NewAlert) (*Alert, error) {
	if in.PatientID == uuid.Nil {
		return nil, ErrPatientRequired
	}
	if in.Severity < 1 || in.Severity > 5 {
		return nil, ErrInvalidSeverity
	}
	patient, err := s.patients.GetByID(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}

	alert := &Alert{
		ID:             uuid.New(),
		PatientID:      in.PatientID,
		Severity:       in.Severity,
		PrimarySymptom: in.PrimarySymptom,
		Symptoms:       in.Symptoms,
		IsAlone:        in.IsAlone,
		CanWalk:        in.CanWalk,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		Status:         StatusActive,
	}
	if alert.Symptoms == nil {
		alert.Symptoms = []string{}
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		return nil, fmt.Errorf("create sos alert: %w", err)
	}
	alert.Patient = patient.Summary()

	s.publish(ctx, websocket.Event{Type: websocket.EventSOSAlert, Payload: alert, Targets: alertChannels})
	s.notifyResponders(ctx, alert, patient)
	return alert, nil
}

func (s *Service) notifyResponders(ctx context.Context, alert *Alert, patient *identity.Patient) {
	staff, err := s.users.ListActiveByRoles(ctx, responderRoles)
	if err != nil {
		s.logger.Error().Err(err).Str("alert_id", alert.ID.String()).Msg("list sos responders")
		return
	}

	symptom := "Emergency"
	if alert.PrimarySymptom != nil && *alert.PrimarySymptom != "" {
		symptom = *alert.PrimarySymptom
	}
	message := fmt.Sprintf("%s - Severity: %d/5 - %s", patient.FullName(), alert.Severity, symptom)

	for _, u := range staff {
		userID := u.ID
		err := s.notifier.Record(ctx, &notification.Notification{
			UserID:  &userID,
			Title:   alertTitle,
			Message: message,
			Type:    notification.TypeSOS,
		})
		if err != nil {
			s.logger.Error().Err(err).
				Str("alert_id", alert.ID.String()).
				Str("user_id", userID.String()).
				Msg("record sos notification")
		}
	}
}

// Acknowledge records that staffID has taken an active alert and tells the
// patient portals who is coming.
func (s *Service) Acknowledge(ctx context.Context, id, staffID uuid.UUID) (*Alert, error) {
	current, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusActive {
		return nil, fmt.Errorf("%w: alert is %s", ErrInvalidTransition, current.Status)
	}
	staff, err := s.users.GetByID(ctx, staffID)
	if err != nil {
		return nil, err
	}

	alert, err := s.alerts.Acknowledge(ctx, id, staffID, s.nowFn())
	if errors.Is(err, errNoTransition) {
		return nil, fmt.Errorf("%w: alert is no longer active", ErrInvalidTransition)
	}
	if err != nil {
		return nil, err
	}
	alert.Patient = current.Patient

	s.publish(ctx, websocket.Event{
		Type: websocket.EventSOSAcknowledged,
		Payload: AcknowledgedPayload{
			AlertID:        alert.ID,
			PatientID:      alert.PatientID,
			AcknowledgedBy: staff.Name,
		},
		Targets: ackChannels,
	})
	return alert, nil
}

// Resolve closes an alert. Resolving a resolved alert returns it unchanged.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, notes *string) (*Alert, error) {
	current, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusResolved {
		return current, nil
	}

	alert, err := s.alerts.Resolve(ctx, id, notes, s.nowFn())
	if errors.Is(err, errNoTransition) {
		return s.alerts.GetByID(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	alert.Patient = current.Patient
	return alert, nil
}

func (s *Service) GetAlert(ctx context.Context, id uuid.UUID) (*Alert, error) {
	return s.alerts.GetByID(ctx, id)
}

// ListAlerts returns the newest alerts, optionally in one state.
func (s *Service) ListAlerts(ctx context.Context, status string) ([]*Alert, error) {
	if status != "" && !ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.alerts.List(ctx, status, ListLimit)
}

func (s *Service) publish(ctx context.Context, e websocket.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("event", e.Type).Msg("broadcast sos event")
	}
}
