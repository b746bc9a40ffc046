// Package fitfile turns uploaded FIT activity files into raw activity records
// that the ride normalizer understands.
package fitfile

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"

	"github.com/ridedeck/ridedeck/internal/normalize"
)

// FIT import errors.
var (
	ErrNoSessions  = errors.New("no sessions found in FIT file")
	ErrInvalidFile = errors.New("invalid FIT file")
)

// Decode reads every FIT file in r (chained files included) and returns one
// activity record per session, in file order.
func Decode(r io.Reader) ([]normalize.Record, error) {
	dec := decoder.New(r)

	var records []normalize.Record
	for dec.Next() {
		fit, err := dec.Decode()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}

		for i := range fit.Messages {
			if fit.Messages[i].Num != typedef.MesgNumSession {
				continue
			}
			session := mesgdef.NewSession(&fit.Messages[i])
			records = append(records, sessionRecord(session, len(records)))
		}
	}

	if len(records) == 0 {
		return nil, ErrNoSessions
	}
	return records, nil
}

func sessionRecord(s *mesgdef.Session, index int) normalize.Record {
	rec := normalize.Record{
		"sport": strings.ToUpper(s.Sport.String()),
	}

	start := s.StartTime
	if start.IsZero() {
		start = s.Timestamp
	}
	if !start.IsZero() {
		rec["startTime"] = start.UTC()
		rec["id"] = fmt.Sprintf("fit-%d-%d", start.Unix(), index)
	} else {
		rec["id"] = fmt.Sprintf("fit-%d", index)
	}

	if s.SportProfileName != "" {
		rec["name"] = s.SportProfileName
	}

	// FIT stores distance in centimeters and times in milliseconds
	if s.TotalDistance != math.MaxUint32 {
		rec["distanceInMeters"] = float64(s.TotalDistance) / 100
	}
	if s.TotalElapsedTime != math.MaxUint32 {
		rec["durationSec"] = float64(s.TotalElapsedTime) / 1000
	}
	if s.TotalAscent != math.MaxUint16 {
		rec["elevationGain"] = float64(s.TotalAscent)
	}

	switch {
	case s.EnhancedAvgSpeed != math.MaxUint32:
		rec["averageSpeedKph"] = float64(s.EnhancedAvgSpeed) / 1000 * 3.6
	case s.AvgSpeed != math.MaxUint16:
		rec["averageSpeedKph"] = float64(s.AvgSpeed) / 1000 * 3.6
	}

	return rec
}
