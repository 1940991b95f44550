package service

import (
	"context"
	"fmt"
	"time"

	"trialdesk/internal/domain"
	"trialdesk/internal/metrics"
	"trialdesk/internal/models"
	"trialdesk/internal/timezone"

	"github.com/rs/zerolog"
)

const displayLayout = "2006-01-02 15:04"

// SearchService turns a client-local trial request into bookable slot
// groups. Everything here reads a snapshot; no locking, safe to recompute
// from any number of parallel requests.
type SearchService struct {
	repo          domain.Repository
	tz            *timezone.Converter
	referenceZone string
	logger        *zerolog.Logger
}

func NewSearchService(repo domain.Repository, tz *timezone.Converter, referenceZone string, logger *zerolog.Logger) *SearchService {
	return &SearchService{
		repo:          repo,
		tz:            tz,
		referenceZone: referenceZone,
		logger:        logger,
	}
}

// Search finds every qualifying teacher free at the requested local time.
// date is the calendar day in the client's zone; localHour is fractional
// (18.5 = 18:30). An empty result is the valid "no slots" outcome, not an
// error. Timezone problems (unknown zone, DST gap/fold) surface unchanged so
// the agent can correct the input.
func (s *SearchService) Search(ctx context.Context, date time.Time, clientZone, teacherType string, localHour float64) ([]models.SlotGroup, error) {
	if teacherType != "" && !models.ValidTeacherType(teacherType) {
		return nil, fmt.Errorf("unknown teacher type: %s", teacherType)
	}

	utcStart, err := s.tz.ToUTC(date, localHour, clientZone)
	if err != nil {
		return nil, err
	}
	utcEnd := utcStart.Add(models.SlotLength)

	candidates, err := s.repo.FindFree(ctx, utcStart, utcEnd, teacherType)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		clientDisplay, err := s.tz.Format(candidates[i].UTCStart, clientZone, displayLayout)
		if err != nil {
			return nil, err
		}
		refDisplay, err := s.tz.Format(candidates[i].UTCStart, s.referenceZone, displayLayout)
		if err != nil {
			return nil, err
		}
		candidates[i].ClientTimeDisplay = clientDisplay
		candidates[i].ReferenceTimeDisplay = refDisplay
	}

	groups := GroupCandidates(candidates)

	metrics.IncSearch()
	s.logger.Debug().
		Time("utc_start", utcStart).
		Str("client_zone", clientZone).
		Str("teacher_type", teacherType).
		Int("groups", len(groups)).
		Msg("availability search")

	return groups, nil
}
