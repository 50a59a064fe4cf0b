package doctor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/platform/websocket"
)

var ErrInvalidStatus = errors.New("invalid doctor status")

// boardChannels receive every availability change.
var boardChannels = []string{
	websocket.ChannelPatients,
	websocket.ChannelAdmin,
	websocket.ChannelPharmacy,
	websocket.ChannelReception,
}

// Service is the doctor status machine. Any state may move to any other
// state; each transition stamps status_updated_at and is broadcast, including
// a transition into the state the doctor is already in.
type Service struct {
	doctors DoctorRepository
	events  websocket.Publisher
	logger  zerolog.Logger
	nowFn   func() time.Time
}

func NewService(doctors DoctorRepository) *Service {
	return &Service{
		doctors: doctors,
		events:  websocket.NopPublisher{},
		logger:  zerolog.Nop(),
		nowFn:   time.Now,
	}
}

// SetPublisher attaches the event broadcaster. nil detaches it.
func (s *Service) SetPublisher(p websocket.Publisher) {
	s.events = websocket.OrNop(p)
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "doctor").Logger()
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, filter ListFilter) ([]*Doctor, error) {
	if filter.Status != "" && !ValidStatus(filter.Status) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, filter.Status)
	}
	return s.doctors.List(ctx, filter)
}

// ChangeStatus applies a manual transition.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, change StatusChange) (*Doctor, error) {
	if !ValidStatus(change.Status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, change.Status)
	}
	return s.transition(ctx, id, change)
}

// MarkWithPatient is the automatic transition when a consultation starts.
func (s *Service) MarkWithPatient(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.transition(ctx, id, StatusChange{Status: StatusWithPatient})
}

// MarkAvailable is the automatic transition when the doctor's queue drains.
func (s *Service) MarkAvailable(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.transition(ctx, id, StatusChange{Status: StatusAvailable})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, change StatusChange) (*Doctor, error) {
	d, err := s.doctors.UpdateStatus(ctx, id, change.normalize(), s.nowFn())
	if err != nil {
		return nil, err
	}

	err = s.events.Publish(ctx, websocket.Event{
		Type:    websocket.EventDoctorStatusChanged,
		Payload: d.statusChangedPayload(),
		Targets: boardChannels,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("doctor_id", id.String()).Msg("broadcast doctor status")
	}
	return d, nil
}
