package signup

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultTokenExpiration is used when no expiration is configured
const DefaultTokenExpiration = 24 * time.Hour

const (
	day  = 24 * time.Hour
	week = 7 * day
	year = time.Duration(365.25 * float64(day))
)

var expirationPattern = regexp.MustCompile(
	`^(-?(?:\d+)?\.?\d+) *(milliseconds?|msecs?|ms|seconds?|secs?|s|minutes?|mins?|m|hours?|hrs?|h|days?|d|weeks?|w|years?|yrs?|y)?$`,
)

var expirationUnits = map[string]time.Duration{
	"":             time.Millisecond,
	"ms":           time.Millisecond,
	"msec":         time.Millisecond,
	"msecs":        time.Millisecond,
	"millisecond":  time.Millisecond,
	"milliseconds": time.Millisecond,
	"s":            time.Second,
	"sec":          time.Second,
	"secs":         time.Second,
	"second":       time.Second,
	"seconds":      time.Second,
	"m":            time.Minute,
	"min":          time.Minute,
	"mins":         time.Minute,
	"minute":       time.Minute,
	"minutes":      time.Minute,
	"h":            time.Hour,
	"hr":           time.Hour,
	"hrs":          time.Hour,
	"hour":         time.Hour,
	"hours":        time.Hour,
	"d":            day,
	"day":          day,
	"days":         day,
	"w":            week,
	"week":         week,
	"weeks":        week,
	"y":            year,
	"yr":           year,
	"yrs":          year,
	"year":         year,
	"years":        year,
}

// ParseTokenExpiration parses a token time to live. It accepts a number
// with an optional unit ("7 days", "2 weeks", "10 minutes", "36h"), a bare
// number counts milliseconds. Compound Go durations such as "1h30m" are
// accepted as well. The result must be positive and fit in a Duration.
func ParseTokenExpiration(pattern string) (time.Duration, error) {
	pattern = strings.TrimSpace(strings.ToLower(pattern))
	if pattern == "" {
		return DefaultTokenExpiration, nil
	}

	duration, err := parseExpiration(pattern)
	if err != nil {
		return 0, err
	}

	if duration <= 0 {
		return 0, fmt.Errorf("token expiration must be positive: %q", pattern)
	}

	return duration, nil
}

func parseExpiration(pattern string) (time.Duration, error) {
	match := expirationPattern.FindStringSubmatch(pattern)
	if match == nil {
		return time.ParseDuration(pattern)
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, fmt.Errorf("token expiration %q: %w", pattern, err)
	}

	nanos := value * float64(expirationUnits[match[2]])
	if math.Abs(nanos) >= math.MaxInt64 {
		return 0, fmt.Errorf("token expiration out of range: %q", pattern)
	}

	return time.Duration(nanos), nil
}
