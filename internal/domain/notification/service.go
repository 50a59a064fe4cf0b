package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/platform/websocket"
)

var ErrTitleRequired = errors.New("notification title is required")

// Service keeps per-user inboxes. Every stored row addressed to a user is
// also pushed to that user's private channel.
type Service struct {
	repo   NotificationRepository
	events websocket.Publisher
	logger zerolog.Logger
}

func NewService(repo NotificationRepository) *Service {
	return &Service{
		repo:   repo,
		events: websocket.NopPublisher{},
		logger: zerolog.Nop(),
	}
}

func (s *Service) SetPublisher(p websocket.Publisher) {
	s.events = websocket.OrNop(p)
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "notification").Logger()
}

// Record persists n and announces it on the recipient's channel.
func (s *Service) Record(ctx context.Context, n *Notification) error {
	if n.Title == "" {
		return ErrTitleRequired
	}
	if n.Type == "" {
		n.Type = TypeInfo
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}

	if n.UserID != nil {
		err := s.events.Publish(ctx, websocket.Event{
			Type:    websocket.EventNotification,
			Payload: n,
			Targets: []string{websocket.UserChannel(n.UserID.String())},
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("broadcast notification")
		}
	}
	return nil
}

// ListForUser returns a page of the user's inbox and their unread count.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) (*Inbox, error) {
	items, total, err := s.repo.ListForUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Notification{}
	}
	return &Inbox{Notifications: items, UnreadCount: unread, Total: total}, nil
}

func (s *Service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkRead(ctx, id, userID)
}
