// Package normalize turns the loosely typed values found in tax authority
// spreadsheets into dates and amounts.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ROCOffset converts between ROC (Minguo) years and Gregorian years.
const ROCOffset = 1911

// ISODate is the output format for normalized dates.
const ISODate = "2006-01-02"

var (
	isoPattern     = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	rocPattern     = regexp.MustCompile(`^(\d{2,3})[/-](\d{1,2})[/-](\d{1,2})$`)
	rocCompact     = regexp.MustCompile(`^(\d{3})(\d{2})(\d{2})$`)
	westernPattern = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})$`)
	serialPattern  = regexp.MustCompile(`^\d{1,6}(\.\d+)?$`) // seven digits are compact ROC
)

// excelEpoch is day zero of spreadsheet serial dates, so serial 1 is
// 1899-12-31 and serial 45292 is 2024-01-01.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// maxExcelSerial is 9999-12-31, the last date spreadsheets can represent.
const maxExcelSerial = 2958465

// ParseDate normalizes a spreadsheet cell into a date. It tries, in order:
// a native time.Time, ISO YYYY-MM-DD, ROC RRR/M/D or RRR-M-D, compact ROC
// RRRMMDD, western YYYY/M/D and finally a spreadsheet serial number (given
// as a number or numeric string). Anything else is rejected rather than
// guessed.
func ParseDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		y, m, d := x.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return ParseDate(*x)
	case int:
		return ExcelSerialToDate(float64(x))
	case int64:
		return ExcelSerialToDate(float64(x))
	case float64:
		return ExcelSerialToDate(x)
	case decimal.Decimal:
		f, _ := x.Float64()
		return ExcelSerialToDate(f)
	case string:
		return parseDateString(x)
	default:
		return parseDateString(fmt.Sprint(x))
	}
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := isoPattern.FindStringSubmatch(s); m != nil {
		return civilDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if t, ok := parseROC(s); ok {
		return t, true
	}
	if m := westernPattern.FindStringSubmatch(s); m != nil {
		return civilDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if serialPattern.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, false
		}
		return ExcelSerialToDate(f)
	}
	return time.Time{}, false
}

// ParseROCDate converts an ROC calendar date ("113/12/15", "113-12-15" or
// "1131215") to ISO ("2024-12-15"). Gregorian input such as "2024/12/15" is
// rejected: a four-digit year is not an ROC year.
func ParseROCDate(s string) (string, bool) {
	t, ok := parseROC(strings.TrimSpace(s))
	if !ok {
		return "", false
	}
	return t.Format(ISODate), true
}

func parseROC(s string) (time.Time, bool) {
	m := rocPattern.FindStringSubmatch(s)
	if m == nil {
		m = rocCompact.FindStringSubmatch(s)
	}
	if m == nil {
		return time.Time{}, false
	}
	year := atoi(m[1])
	if year < 1 {
		return time.Time{}, false
	}
	return civilDate(year+ROCOffset, atoi(m[2]), atoi(m[3]))
}

// ExcelSerialToDate converts a spreadsheet serial day number to a date.
// Fractions (time of day) are dropped.
func ExcelSerialToDate(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < 1 || serial > maxExcelSerial {
		return time.Time{}, false
	}
	return excelEpoch.AddDate(0, 0, int(serial)), true
}

// ToROCYear returns the ROC year of t.
func ToROCYear(t time.Time) int {
	return t.Year() - ROCOffset
}

// ROCPeriod formats t's month as RRRMM, e.g. 2024-12 -> "11312".
func ROCPeriod(t time.Time) string {
	return fmt.Sprintf("%03d%02d", ToROCYear(t), int(t.Month()))
}

// civilDate builds a date, rejecting out-of-range parts instead of letting
// time.Date roll them over (2024-02-30 is not 2024-03-01).
func civilDate(y, m, d int) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
