package nlu

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	emailRE   = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRE   = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)
	nationalIDRE = regexp.MustCompile(`\b\d{9}\b|\b\d{3}[-\s]\d{2}[-\s]\d{4}\b`)
	postalRE  = regexp.MustCompile(`\b\d{5}(-\d{4})?\b|\b[A-Za-z]\d[A-Za-z][ -]?\d[A-Za-z]\d\b`)
	timeRE    = regexp.MustCompile(`\b([01]?\d|2[0-3]):[0-5]\d\s?(am|pm|AM|PM)?\b`)
	moneyRE   = regexp.MustCompile(`[$€£]\s?\d+(?:[.,]\d{2})?|\b\d+(?:[.,]\d{2})?\s?(?:USD|EUR|GBP)\b`)
	urlRE     = regexp.MustCompile(`https?://[^\s]+`)
	isoDateRE = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	relDateRE = regexp.MustCompile(`(?i)\b(today|tomorrow|yesterday|next week|next monday|next tuesday|next wednesday|next thursday|next friday)\b`)
)

// ExtractEntities runs every pattern extractor over text, independent of
// intent classification (spec §4.4). Extractors are pure functions of the
// input; they never persist or mutate state.
func ExtractEntities(text string) Entities {
	return Entities{
		Emails:       dedupe(emailRE.FindAllString(text, -1)),
		Phones:       filterValidPhones(dedupe(phoneRE.FindAllString(text, -1))),
		NationalIDs:  filterValidNationalIDs(dedupe(nationalIDRE.FindAllString(text, -1))),
		PostalCodes:  dedupe(postalRE.FindAllString(text, -1)),
		Dates:        dedupe(append(isoDateRE.FindAllString(text, -1), relDateRE.FindAllString(text, -1)...)),
		Times:        dedupe(timeRE.FindAllString(text, -1)),
		MonetaryAmts: dedupe(moneyRE.FindAllString(text, -1)),
		URLs:         dedupe(urlRE.FindAllString(text, -1)),
	}
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// filterValidPhones keeps only candidates with a plausible count of digits,
// a loose sanity check across national variants (spec §4.4: "loose
// national variants").
func filterValidPhones(candidates []string) []string {
	var out []string
	for _, c := range candidates {
		digits := digitsOnly(c)
		if len(digits) >= 7 && len(digits) <= 15 {
			out = append(out, c)
		}
	}
	return out
}

// filterValidNationalIDs applies a Luhn checksum where the candidate is
// numeric-only and long enough to carry a check digit, per spec §4.4
// ("with checksum validation where applicable"); malformed candidates are
// still returned — spec says "where applicable", not "always".
func filterValidNationalIDs(candidates []string) []string {
	var out []string
	for _, c := range candidates {
		digits := digitsOnly(c)
		if len(digits) == 9 && luhnValid(digits) {
			out = append(out, c)
			continue
		}
		if len(digits) != 9 {
			out = append(out, c) // not subject to checksum validation
		}
	}
	return out
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func luhnValid(digits string) bool {
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		d, err := strconv.Atoi(string(digits[i]))
		if err != nil {
			return false
		}
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}
