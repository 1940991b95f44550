package timezone

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

var (
	ErrInvalidTimezone    = errors.New("invalid timezone")
	ErrAmbiguousLocalTime = errors.New("ambiguous local time")
)

// Converter translates (calendar date, fractional civil hour) tuples between
// a named zone and UTC. Stateless apart from the alias table and a location
// cache; safe for concurrent use after construction.
type Converter struct {
	aliases map[string]string

	mu        sync.RWMutex
	locations map[string]*time.Location
}

// NewConverter builds a converter with operational zone aliases, e.g.
// "uae" -> "Asia/Dubai", "egypt" -> "Africa/Cairo". Alias keys are matched
// case-insensitively; anything not in the table is treated as an IANA name.
func NewConverter(aliases map[string]string) (*Converter, error) {
	c := &Converter{
		aliases:   make(map[string]string, len(aliases)),
		locations: make(map[string]*time.Location),
	}
	for alias, name := range aliases {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("%w: alias %q -> %q", ErrInvalidTimezone, alias, name)
		}
		key := strings.ToLower(strings.TrimSpace(alias))
		c.aliases[key] = name
		c.locations[name] = loc
	}
	return c, nil
}

// Location resolves a zone string (alias or IANA name) to a *time.Location.
func (c *Converter) Location(zone string) (*time.Location, error) {
	name := strings.TrimSpace(zone)
	if name == "" {
		return nil, fmt.Errorf("%w: empty zone", ErrInvalidTimezone)
	}
	if mapped, ok := c.aliases[strings.ToLower(name)]; ok {
		name = mapped
	}
	c.mu.RLock()
	loc, ok := c.locations[name]
	c.mu.RUnlock()
	if ok {
		return loc, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, zone)
	}
	c.mu.Lock()
	c.locations[name] = loc
	c.mu.Unlock()
	return loc, nil
}

// ToUTC converts a calendar day plus a fractional civil hour (18.5 = 18:30)
// in the given zone to a UTC instant. Local times that do not exist (DST gap)
// or occur twice (DST fold) are rejected with ErrAmbiguousLocalTime instead
// of silently shifting by an hour.
func (c *Converter) ToUTC(date time.Time, hourFraction float64, zone string) (time.Time, error) {
	loc, err := c.Location(zone)
	if err != nil {
		return time.Time{}, err
	}

	if hourFraction < 0 || hourFraction >= 24 {
		return time.Time{}, fmt.Errorf("hour out of range: %v", hourFraction)
	}
	totalMinutes := int(math.Round(hourFraction * 60))
	hh, mm := totalMinutes/60, totalMinutes%60

	local := time.Date(date.Year(), date.Month(), date.Day(), hh, mm, 0, 0, loc)

	// A gap normalizes to a different wall clock.
	if !sameWall(local, date, hh, mm) {
		return time.Time{}, fmt.Errorf("%w: %s %02d:%02d does not exist in %s",
			ErrAmbiguousLocalTime, date.Format("2006-01-02"), hh, mm, zone)
	}

	// A fold repeats the same wall clock 30 or 60 minutes apart.
	for _, probe := range []time.Duration{-time.Hour, time.Hour, -30 * time.Minute, 30 * time.Minute} {
		if sameWall(local.Add(probe), date, hh, mm) {
			return time.Time{}, fmt.Errorf("%w: %s %02d:%02d occurs twice in %s",
				ErrAmbiguousLocalTime, date.Format("2006-01-02"), hh, mm, zone)
		}
	}

	return local.UTC(), nil
}

// FromUTC converts a UTC instant to the calendar day and fractional civil
// hour in the given zone.
func (c *Converter) FromUTC(instant time.Time, zone string) (time.Time, float64, error) {
	loc, err := c.Location(zone)
	if err != nil {
		return time.Time{}, 0, err
	}
	local := instant.In(loc)
	date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	hour := float64(local.Hour()) + float64(local.Minute())/60
	return date, hour, nil
}

// Format renders an instant in the given zone with a time layout.
func (c *Converter) Format(instant time.Time, zone, layout string) (string, error) {
	loc, err := c.Location(zone)
	if err != nil {
		return "", err
	}
	return instant.In(loc).Format(layout), nil
}

func sameWall(t, date time.Time, hh, mm int) bool {
	return t.Year() == date.Year() && t.Month() == date.Month() && t.Day() == date.Day() &&
		t.Hour() == hh && t.Minute() == mm
}
