package identity

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
)

const (
	dateLayout = "2006-01-02"

	// TwoDigitYearCutoff: YY <= cutoff is 20YY, otherwise 19YY.
	TwoDigitYearCutoff = 25
)

var (
	isoDateRegex = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

	errBirthDate = errors.New("invalid birth date, expected DD.MM.YYYY or DD.MM.YY")
)

// NormalizeBirthDate turns free-form user input into YYYY-MM-DD.
// Input is read as DDMMYYYY (8 digits) or DDMMYY (6 digits) once every non-digit is dropped,
// so "15.05.2001", "15/05/01" and "15052001" are equivalent. An ISO "2001-05-15" is taken as is.
func NormalizeBirthDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	if m := isoDateRegex.FindStringSubmatch(raw); m != nil {
		return buildDate(m[3], m[2], m[1])
	}

	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r <= unicode.MaxASCII {
			return r
		}
		return -1
	}, raw)

	switch len(digits) {
	case 8:
		return buildDate(digits[:2], digits[2:4], digits[4:])
	case 6:
		yy, _ := strconv.Atoi(digits[4:])
		century := 1900
		if yy <= TwoDigitYearCutoff {
			century = 2000
		}
		return buildDate(digits[:2], digits[2:4], strconv.Itoa(century+yy))
	default:
		return "", errBirthDate
	}
}

// buildDate checks that day/month/year form a real calendar date.
func buildDate(day, month, year string) (string, error) {
	d, err1 := strconv.Atoi(day)
	m, err2 := strconv.Atoi(month)
	y, err3 := strconv.Atoi(year)
	if err1 != nil || err2 != nil || err3 != nil || y < 1 || m < 1 || m > 12 || d < 1 {
		return "", errBirthDate
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m || t.Year() != y {
		return "", errBirthDate // e.g. 31.02 rolled over
	}
	return t.Format(dateLayout), nil
}
