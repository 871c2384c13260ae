package waitlist

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/luvo/luvo/internal/platform/events"
)

// MaxEmailLength is the RFC 5321 path limit.
const MaxEmailLength = 254

// publishTimeout bounds the event write so an unreachable broker cannot hold
// the signup request open.
const publishTimeout = 3 * time.Second

var ErrInvalidEmail = errors.New("invalid email address")

type Service struct {
	repo           Repository
	publisher      events.Publisher
	publishTimeout time.Duration
	logger         zerolog.Logger
}

func NewService(repo Repository, publisher events.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:           repo,
		publisher:      publisher,
		publishTimeout: publishTimeout,
		logger:         logger.With().Str("component", "waitlist").Logger(),
	}
}

// NormalizeEmail trims and lowercases raw and checks that it is a bare
// address with a dotted domain.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > MaxEmailLength {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	at := strings.LastIndexByte(email, '@')
	if !strings.Contains(email[at+1:], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Join records a signup. created is false when the email was already on the
// list, in which case no event is published.
func (s *Service) Join(ctx context.Context, email, source, userAgent string) (signup *Signup, created bool, err error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, false, err
	}
	if source = strings.TrimSpace(source); source == "" {
		source = DefaultSource
	}

	signup = &Signup{Email: normalized, Source: source, UserAgent: userAgent}
	created, err = s.repo.Create(ctx, signup)
	if err != nil {
		return nil, false, fmt.Errorf("store signup: %w", err)
	}
	if !created {
		return signup, false, nil
	}

	// A lost event does not undo the signup. Events are keyed by id so the
	// address stays out of the partition key.
	pubCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, signup.ID.String(), signup.event()); err != nil {
		s.logger.Warn().Err(err).Str("signup_id", signup.ID.String()).Msg("waitlist event not published")
	}
	s.logger.Info().Str("signup_id", signup.ID.String()).Str("source", source).Msg("waitlist signup")
	return signup, true, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
