package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	relativeRe  = regexp.MustCompile(`^(\d+)\s+(second|minute|hour|day|week|month|year)s?\s+ago$`)
	timestampRe = regexp.MustCompile(`^<t:(\d+)(?::[A-Za-z])?>`)
	naturalRe   = regexp.MustCompile(`^([A-Za-z]+)\s+(\d{1,2})\s+(\d{4})$`)
)

// Month and year spans are approximate; the grammar trades precision
// for accepting what people actually type.
var unitSpans = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
	"month":  30 * 24 * time.Hour,
	"year":   365 * 24 * time.Hour,
}

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// parseDate resolves a trailing date expression to an absolute time.
// An unparsable expression falls back to the current time with a
// warning; the record is never rejected for its date alone.
func (p *Parser) parseDate(raw string) time.Time {
	now := p.now()
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return now
	}
	lower := strings.ToLower(trimmed)

	switch lower {
	case "now", "just now":
		return now
	case "today":
		return startOfDay(now)
	case "yesterday":
		return startOfDay(now.AddDate(0, 0, -1))
	}

	if m := relativeRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.Add(-time.Duration(n) * unitSpans[m[2]])
	}

	if m := timestampRe.FindStringSubmatch(trimmed); m != nil {
		unix, _ := strconv.ParseInt(m[1], 10, 64)
		return time.Unix(unix, 0)
	}

	if m := naturalRe.FindStringSubmatch(trimmed); m != nil {
		for _, layout := range []string{"Jan 2 2006", "January 2 2006"} {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t
			}
		}
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t
		}
	}

	p.logger.Warn().Str("date", trimmed).Msg("could not parse date, using now")
	return now
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
