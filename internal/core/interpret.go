package core

import (
	"fmt"
	"strconv"
	"strings"
)

var dayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Interpret turns a 5-field cron expression into a short English phrase.
// Expressions it does not recognize, including ones with the wrong number of
// fields, are returned unchanged.
func Interpret(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return expr
	}
	minute, hour, dom, month, dow := fields[0], fields[1], fields[2], fields[3], fields[4]

	if n, ok := stepOf(minute); ok && hour == "*" && dom == "*" && month == "*" && dow == "*" {
		if n == 1 {
			return "Every minute"
		}
		return fmt.Sprintf("Every %d minutes", n)
	}

	if n, ok := stepOf(hour); ok && minute == "0" && dom == "*" && month == "*" && dow == "*" {
		if n == 1 {
			return "Every hour"
		}
		return fmt.Sprintf("Every %d hours", n)
	}

	m, minuteOK := numberIn(minute, 0, 59)
	h, hourOK := numberIn(hour, 0, 23)

	if minuteOK && hourOK && month == "*" {
		at := clock(h, m)
		switch {
		case dom == "*" && dow == "*":
			return "Daily at " + at
		case dom == "*":
			return fmt.Sprintf("At %s, %s", at, dayRange(dow))
		case dow == "*":
			if d, ok := numberIn(dom, 1, 31); ok {
				return fmt.Sprintf("Monthly on the %d%s at %s", d, ordinalSuffix(d), at)
			}
		}
	}

	if hour == "*" && dom == "*" && month == "*" && dow == "*" {
		if minute == "0" {
			return "Every hour"
		}
		if minuteOK {
			return fmt.Sprintf("Every hour at :%02d", m)
		}
	}

	return expr
}

// stepOf parses "*/N" and returns N.
func stepOf(field string) (int, bool) {
	rest, ok := strings.CutPrefix(field, "*/")
	if !ok || !isDigits(rest) {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

func numberIn(field string, lo, hi int) (int, bool) {
	if !isDigits(field) {
		return 0, false
	}
	n, err := strconv.Atoi(field)
	if err != nil || n < lo || n > hi {
		return 0, false
	}
	return n, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// clock renders a 12-hour time such as "9:00 AM" or "12:30 PM".
func clock(hour, minute int) string {
	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, minute, period)
}

func dayRange(dow string) string {
	switch dow {
	case "1-5":
		return "Mon–Fri"
	case "0,6", "6,0":
		return "Sat–Sun"
	}
	parts := strings.Split(dow, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) != 1 || p[0] < '0' || p[0] > '6' {
			return dow
		}
		names = append(names, dayNames[p[0]-'0'])
	}
	return strings.Join(names, ", ")
}

// ordinalSuffix looks only at the last digit, so 11 becomes "11st".
func ordinalSuffix(n int) string {
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}
