package ingestion

import (
	"time"

	"github.com/juju/errors"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "02/01/2006"}

// parseDate accepts the date layouts banks commonly export. An empty value
// is the zero time, which the coordinator replaces with now.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.NotValidf("date %q", s)
}
