package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/domain/doctor"
	"github.com/medicore/medicore/internal/domain/identity"
	redisclient "github.com/medicore/medicore/internal/platform/redis"
	"github.com/medicore/medicore/internal/platform/websocket"
)

var (
	ErrInvalidStatus    = errors.New("invalid appointment status")
	ErrInvalidSeverity  = errors.New("triage severity must be between 1 and 5")
	ErrScheduledInPast  = errors.New("scheduled date must be today or in the future")
	ErrQueueBusy        = errors.New("doctor queue is busy, retry")
	ErrPatientRequired  = errors.New("patient id is required")
	ErrDoctorIDRequired = errors.New("doctor id is required")
)

var (
	createdChannels = []string{websocket.ChannelDoctors, websocket.ChannelAdmin}
	statusChannels  = []string{websocket.ChannelAdmin, websocket.ChannelPatients}
)

// DoctorStatusMachine is the part of the doctor service the queue drives.
type DoctorStatusMachine interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
	MarkWithPatient(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
	MarkAvailable(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}

// Service issues queue tickets and moves appointments through their
// lifecycle. Ticket numbers are assigned once and never renumbered.
type Service struct {
	appts    AppointmentRepository
	doctors  DoctorStatusMachine
	patients identity.PatientRepository
	locker   redisclient.DayLocker
	events   websocket.Publisher
	logger   zerolog.Logger
	loc      *time.Location
	nowFn    func() time.Time
}

func NewService(appts AppointmentRepository, doctors DoctorStatusMachine) *Service {
	return &Service{
		appts:   appts,
		doctors: doctors,
		events:  websocket.NopPublisher{},
		logger:  zerolog.Nop(),
		loc:     time.Local,
		nowFn:   time.Now,
	}
}

func (s *Service) SetPublisher(p websocket.Publisher) {
	s.events = websocket.OrNop(p)
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "queue").Logger()
}

// SetPatients enables patient existence checks on booking.
func (s *Service) SetPatients(patients identity.PatientRepository) {
	s.patients = patients
}

// SetLocker serialises ticket issue per doctor and day. Without a locker two
// concurrent bookings may draw the same position.
func (s *Service) SetLocker(l redisclient.DayLocker) {
	s.locker = l
}

// SetLocation sets the clinic time zone used for calendar days and slots.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// Create issues the next ticket in the doctor's queue for the calendar day of
// the scheduled time.
func (s *Service) Create(ctx context.Context, in NewAppointment) (*Appointment, error) {
	if in.PatientID == uuid.Nil {
		return nil, ErrPatientRequired
	}
	if in.DoctorID == uuid.Nil {
		return nil, ErrDoctorIDRequired
	}
	if in.TriageSeverity != nil && (*in.TriageSeverity < 1 || *in.TriageSeverity > 5) {
		return nil, ErrInvalidSeverity
	}

	now := s.nowFn()
	if in.ScheduledTime.IsZero() {
		in.ScheduledTime = now
	}
	today, _ := dayBounds(now, s.loc)
	dayStart, dayEnd := dayBounds(in.ScheduledTime, s.loc)
	if dayStart.Before(today) {
		return nil, ErrScheduledInPast
	}

	if _, err := s.doctors.GetDoctor(ctx, in.DoctorID); err != nil {
		return nil, err
	}
	if s.patients != nil {
		if _, err := s.patients.GetByID(ctx, in.PatientID); err != nil {
			return nil, err
		}
	}

	var appt *Appointment
	issue := func(ctx context.Context) error {
		count, err := s.appts.CountByStatus(ctx, in.DoctorID, dayStart, dayEnd, activeStatuses)
		if err != nil {
			return err
		}
		appt = &Appointment{
			ID:                   uuid.New(),
			PatientID:            in.PatientID,
			DoctorID:             in.DoctorID,
			ScheduledTime:        in.ScheduledTime,
			Status:               StatusBooked,
			QueuePosition:        count + 1,
			EstimatedWaitMinutes: count * MinutesPerPatient,
			TriageSeverity:       in.TriageSeverity,
			PrimarySymptom:       in.PrimarySymptom,
			Reason:               in.Reason,
			IsWalkIn:             in.IsWalkIn,
		}
		return s.appts.Create(ctx, appt)
	}

	var err error
	if s.locker != nil {
		err = s.locker.WithDoctorDayLock(ctx, in.DoctorID, dayStart, issue)
	} else {
		err = issue(ctx)
	}
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return nil, ErrQueueBusy
	}
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.publish(ctx, websocket.Event{
		Type:    websocket.EventQueueUpdated,
		Payload: CreatedPayload{Appointment: appt},
		Targets: createdChannels,
	})
	return appt, nil
}

// UpdateStatus moves an appointment to status and applies the doctor side
// effects: in_progress puts the doctor with a patient, completed frees the
// doctor once nobody is left waiting today.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	now := s.nowFn()
	appt, err := s.appts.UpdateStatus(ctx, id, status, now)
	if err != nil {
		return nil, err
	}

	switch status {
	case StatusInProgress:
		if _, err := s.doctors.MarkWithPatient(ctx, appt.DoctorID); err != nil {
			s.logger.Error().Err(err).Str("doctor_id", appt.DoctorID.String()).Msg("mark doctor with patient")
		}
	case StatusCompleted:
		from, to := dayBounds(now, s.loc)
		waiting, err := s.appts.CountByStatus(ctx, appt.DoctorID, from, to, waitingStatuses)
		if err != nil {
			s.logger.Error().Err(err).Str("doctor_id", appt.DoctorID.String()).Msg("count waiting appointments")
		} else if waiting == 0 {
			if _, err := s.doctors.MarkAvailable(ctx, appt.DoctorID); err != nil {
				s.logger.Error().Err(err).Str("doctor_id", appt.DoctorID.String()).Msg("mark doctor available")
			}
		}
	}

	s.publish(ctx, websocket.Event{
		Type:    websocket.EventQueueUpdated,
		Payload: StatusPayload{AppointmentID: appt.ID, DoctorID: appt.DoctorID, Status: appt.Status},
		Targets: statusChannels,
	})
	return appt, nil
}

// GetAvailableSlots returns the half-hour grid for date. date is interpreted
// as a calendar day in the clinic time zone.
func (s *Service) GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, error) {
	from, to := dayBounds(date, s.loc)
	booked, err := s.appts.BookedTimes(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	return buildSlots(booked, s.loc), nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appts.GetByID(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error) {
	if filter.Status != "" && !ValidStatus(filter.Status) {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
	}
	if filter.Date != nil {
		from, _ := dayBounds(*filter.Date, s.loc)
		filter.Date = &from
	}
	return s.appts.List(ctx, filter, limit, offset)
}

// DoctorQueue returns today's active appointments in ticket order.
func (s *Service) DoctorQueue(ctx context.Context, doctorID uuid.UUID) ([]*Appointment, error) {
	from, to := dayBounds(s.nowFn(), s.loc)
	return s.appts.ListByStatus(ctx, doctorID, from, to, activeStatuses)
}

// DoctorStats counts today's completed and waiting appointments and the
// day's total in any state.
func (s *Service) DoctorStats(ctx context.Context, doctorID uuid.UUID) (*Stats, error) {
	from, to := dayBounds(s.nowFn(), s.loc)
	completed, err := s.appts.CountByStatus(ctx, doctorID, from, to, []string{StatusCompleted})
	if err != nil {
		return nil, err
	}
	pending, err := s.appts.CountByStatus(ctx, doctorID, from, to, waitingStatuses)
	if err != nil {
		return nil, err
	}
	total, err := s.appts.CountByStatus(ctx, doctorID, from, to, allStatuses)
	if err != nil {
		return nil, err
	}
	return &Stats{TodayCompleted: completed, TodayPending: pending, TotalPatients: total}, nil
}

func (s *Service) publish(ctx context.Context, e websocket.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("event", e.Type).Msg("broadcast queue event")
	}
}
