package ehr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/luvo/luvo/internal/platform/blobstore"
)

// ErrNoData means the source holds no .jsonl or .json export.
var ErrNoData = errors.New("no FHIR export found")

type Service struct {
	source blobstore.Source
	logger zerolog.Logger
}

func NewService(source blobstore.Source, logger zerolog.Logger) *Service {
	return &Service{
		source: source,
		logger: logger.With().Str("component", "ehr").Logger(),
	}
}

// SourceName describes where exports are read from.
func (s *Service) SourceName() string {
	return s.source.String()
}

// Parse categorizes the first export in lexical order.
func (s *Service) Parse(ctx context.Context) (*ParseResult, error) {
	names, err := s.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	name, ok := FirstExport(names)
	if !ok {
		return nil, ErrNoData
	}

	rc, err := s.source.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open export %s: %w", name, err)
	}
	defer rc.Close()

	res, err := Parse(rc, s.logger.With().Str("file", name).Logger())
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("file", name).
		Int("lines", res.Lines).
		Int("skipped", res.Skipped).
		Int("vitals", len(res.Record.Vitals)).
		Int("labs", len(res.Record.LabResults)).
		Int("conditions", len(res.Record.Conditions)).
		Msg("parsed FHIR export")
	return res, nil
}

// FirstExport picks the first .jsonl or .json name from a sorted listing.
func FirstExport(names []string) (string, bool) {
	for _, n := range names {
		if strings.HasSuffix(n, ".jsonl") || strings.HasSuffix(n, ".json") {
			return n, true
		}
	}
	return "", false
}
