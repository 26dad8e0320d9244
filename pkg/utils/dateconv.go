package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the date format Redmine uses for start and due dates
const DateLayout = "2006-01-02"

var (
	relativePattern = regexp.MustCompile(`^@today([+-])(\d+)([dw])$`)
	isoPattern      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ResolveDate converts a date expression to an ISO date
// Examples:
//
//	@today -> 2025-09-04
//	@today+3d -> 2025-09-07
//	@today-1w -> 2025-08-28
//	2025-09-01 -> 2025-09-01
func ResolveDate(input string) (string, error) {
	return ResolveDateWithBase(input, time.Now())
}

// ResolveDateWithBase resolves relative to a specific base date (for testing)
func ResolveDateWithBase(input string, baseDate time.Time) (string, error) {
	input = strings.ReplaceAll(input, " ", "")
	if input == "" {
		return "", nil
	}
	return parseDate(input, baseDate)
}

// parseDate parses @today expressions and ISO dates
func parseDate(input string, baseDate time.Time) (string, error) {
	if input == "@today" {
		return baseDate.Format(DateLayout), nil
	}

	if matches := relativePattern.FindStringSubmatch(input); matches != nil {
		num, err := strconv.Atoi(matches[2])
		if err != nil {
			return "", fmt.Errorf("invalid number: %s", matches[2])
		}
		days := num
		if matches[3] == "w" {
			days = num * 7
		}
		if matches[1] == "-" {
			days = -days
		}
		return baseDate.AddDate(0, 0, days).Format(DateLayout), nil
	}

	if isoPattern.MatchString(input) {
		if _, err := time.Parse(DateLayout, input); err != nil {
			return "", fmt.Errorf("invalid date: %s", input)
		}
		return input, nil
	}

	return "", fmt.Errorf("unsupported date format: %s", input)
}

// DateFilter compares timestamps against a resolved date
type DateFilter struct {
	Op   string
	Date time.Time
}

// ParseDateFilter parses an optional comparison operator followed by a date expression
// Examples:
//
//	>=@today-1w  issues on or after 2025-08-28
//	<2025-09-01  issues before 2025-09-01
//	@today       issues on 2025-09-04
func ParseDateFilter(input string, baseDate time.Time) (*DateFilter, error) {
	input = strings.ReplaceAll(input, " ", "")

	op := "="
	for _, candidate := range []string{">=", "<=", ">", "<"} {
		if strings.HasPrefix(input, candidate) {
			op = candidate
			input = input[len(candidate):]
			break
		}
	}

	iso, err := parseDate(input, baseDate)
	if err != nil {
		return nil, err
	}
	date, err := time.ParseInLocation(DateLayout, iso, baseDate.Location())
	if err != nil {
		return nil, err
	}
	return &DateFilter{Op: op, Date: date}, nil
}

// Match reports whether t falls on the side of the filter date given by Op.
// Comparison is by calendar day in the filter's location.
func (f *DateFilter) Match(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	y, m, d := t.In(f.Date.Location()).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, f.Date.Location())

	switch f.Op {
	case ">":
		return day.After(f.Date)
	case ">=":
		return !day.Before(f.Date)
	case "<":
		return day.Before(f.Date)
	case "<=":
		return !day.After(f.Date)
	default:
		return day.Equal(f.Date)
	}
}

// String renders the filter in Redmine query syntax
func (f *DateFilter) String() string {
	if f.Op == "=" {
		return f.Date.Format(DateLayout)
	}
	return f.Op + f.Date.Format(DateLayout)
}
