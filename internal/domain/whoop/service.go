package whoop

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/luvo/luvo/internal/platform/cache"
)

const (
	DefaultDays = 100
	MaxDays     = 365
)

// ErrInvalidDays is returned for a days window outside 1..MaxDays.
var ErrInvalidDays = errors.New("days must be between 1 and 365")

// PagesFor returns how many pages cover a window of days, capped at MaxPages.
func PagesFor(days int) int {
	pages := (days + PageSize - 1) / PageSize
	if pages > MaxPages {
		return MaxPages
	}
	if pages < 1 {
		return 1
	}
	return pages
}

type Service struct {
	client *Client
	cache  cache.Store
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewService wires the vendor client to a response cache. A zero ttl or nil
// store disables caching.
func NewService(client *Client, store cache.Store, ttl time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		client: client,
		cache:  store,
		ttl:    ttl,
		logger: logger.With().Str("component", "whoop").Logger(),
		now:    time.Now,
	}
}

// Fetch loads recovery, sleep and cycle history for the last days days. The
// three collections are read concurrently. A collection that fails on its
// first page fails the whole call; a later page failure truncates that
// collection.
func (s *Service) Fetch(ctx context.Context, token string, days int) (*Data, error) {
	if days < 1 || days > MaxDays {
		return nil, ErrInvalidDays
	}

	key := cacheKey(token, days)
	if cached, ok := s.fromCache(ctx, key); ok {
		return cached, nil
	}

	q := PageQuery{
		Start:    s.now().AddDate(0, 0, -days),
		MaxPages: PagesFor(days),
	}

	var (
		recovery      []Recovery
		sleep         []Sleep
		cycle         []Cycle
		recoveryPages int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, pages, err := s.client.Recoveries(gctx, token, q)
		recovery, recoveryPages = recs, pages
		return s.settle("recovery", pages, err)
	})
	g.Go(func() error {
		recs, pages, err := s.client.Sleeps(gctx, token, q)
		sleep = recs
		return s.settle("sleep", pages, err)
	})
	g.Go(func() error {
		recs, pages, err := s.client.Cycles(gctx, token, q)
		cycle = recs
		return s.settle("cycle", pages, err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := newData(recovery, sleep, cycle, recoveryPages, days)
	s.toCache(ctx, key, data)
	return data, nil
}

func (s *Service) settle(collection string, pages int, err error) error {
	if err == nil {
		return nil
	}
	if pages == 0 || errors.Is(err, ErrUnauthorized) {
		return fmt.Errorf("fetch %s: %w", collection, err)
	}
	s.logger.Warn().Err(err).
		Str("collection", collection).
		Int("pages_fetched", pages).
		Msg("pagination stopped early, returning partial history")
	return nil
}

func (s *Service) fromCache(ctx context.Context, key string) (*Data, bool) {
	if s.cache == nil || s.ttl <= 0 {
		return nil, false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Msg("cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		s.logger.Warn().Err(err).Msg("discarding undecodable cache entry")
		return nil, false
	}
	return &data, true
}

func (s *Service) toCache(ctx context.Context, key string, data *Data) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn().Err(err).Msg("cache write failed")
	}
}

// cacheKey never embeds the token itself.
func cacheKey(token string, days int) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("whoop:data:%s:%d", hex.EncodeToString(sum[:12]), days)
}
