// Package service delivers notifications across the in-app feed, SSE and
// email channels. Delivery is best effort: a failed channel is logged and
// never propagated, because notifications must not fail the operation that
// triggered them.
package service

import (
	"context"

	directory "propertyhub_backend/internal/directory/repository"
	"propertyhub_backend/internal/email"
	"propertyhub_backend/internal/notification/inapp"
	"propertyhub_backend/internal/notification/sse"
	"propertyhub_backend/platform/logger"
)

// UserDirectory resolves recipient email addresses.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id int64) (*directory.User, error)
}

// Notification is a channel-agnostic message for one recipient.
type Notification struct {
	UserID  int64
	Title   string
	Body    string
	TypeTag string
	// RelatedVisitID links the notification to a visit request.
	RelatedVisitID *int64
	// SendEmail additionally delivers the message by email.
	SendEmail bool
}

// Service fans a notification out to its channels.
type Service struct {
	feed   *inapp.Repository
	stream *sse.Service
	mail   email.Sender
	users  UserDirectory
	log    *logger.Logger
}

// New creates the notification service. mail may be a NoopSender when SMTP
// is not configured.
func New(feed *inapp.Repository, stream *sse.Service, mail email.Sender, users UserDirectory, log *logger.Logger) *Service {
	return &Service{feed: feed, stream: stream, mail: mail, users: users, log: log}
}

// Deliver writes the feed entry, pushes the live event and optionally sends
// the email. Each channel fails independently.
func (s *Service) Deliver(ctx context.Context, n Notification) {
	entry := &inapp.Notification{
		UserID:    n.UserID,
		Title:     n.Title,
		Body:      n.Body,
		TypeTag:   n.TypeTag,
		RelatedID: n.RelatedVisitID,
	}
	if _, err := s.feed.Create(ctx, entry); err != nil {
		s.log.NotifyError("inapp", n.UserID, err)
	}

	s.stream.Send(n.UserID, sse.Message{Event: n.TypeTag, Data: entry})

	if !n.SendEmail {
		return
	}
	user, err := s.users.GetUserByID(ctx, n.UserID)
	if err != nil {
		s.log.NotifyError("email", n.UserID, err)
		return
	}
	if err := s.mail.Send(ctx, user.Email, n.Title, n.Body); err != nil {
		s.log.NotifyError("email", n.UserID, err)
	}
}

// Feed returns the in-app repository for the HTTP handler.
func (s *Service) Feed() *inapp.Repository {
	return s.feed
}

// Stream returns the SSE service for the HTTP handler.
func (s *Service) Stream() *sse.Service {
	return s.stream
}
