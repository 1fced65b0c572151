package service

import "strings"

// Digits strips every non-digit rune from s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatPhone renders a Brazilian phone number progressively as the user
// types: "(DD) DDDD" up to "(DD) DDDDD-DDDD". Input beyond 11 digits is
// truncated.
func FormatPhone(value string) string {
	d := Digits(value)
	switch {
	case len(d) <= 2:
		return d
	case len(d) <= 7:
		return "(" + d[:2] + ") " + d[2:]
	case len(d) <= 11:
		return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:]
	default:
		return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:11]
	}
}

// FormatCPF renders a CPF progressively: "DDD.DDD.DDD-DD". Input beyond
// 11 digits is truncated.
func FormatCPF(value string) string {
	d := Digits(value)
	switch {
	case len(d) <= 3:
		return d
	case len(d) <= 6:
		return d[:3] + "." + d[3:]
	case len(d) <= 9:
		return d[:3] + "." + d[3:6] + "." + d[6:]
	default:
		return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
	}
}
