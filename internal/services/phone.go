package services

import (
	"net/mail"
	"strings"
)

// NormPhone normalizes a Korean mobile number to local digits-only form
// ("01012345678"). Returns "" when the input cannot be a phone number.
func NormPhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	// +82 10 ... -> 010 ...
	if strings.HasPrefix(d, "82") && len(d) > 2 {
		d = "0" + d[2:]
	}
	if len(d) < 9 || len(d) > 11 || !strings.HasPrefix(d, "0") {
		return ""
	}
	return d
}

func NormEmail(s string) (string, bool) {
	e := strings.TrimSpace(strings.ToLower(s))
	if e == "" {
		return "", false
	}
	_, err := mail.ParseAddress(e)
	return e, err == nil
}
