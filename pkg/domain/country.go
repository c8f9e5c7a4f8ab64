package domain

import (
	"sort"
	"strings"

	"golang.org/x/text/language"

	dErrors "nagoya/pkg/domain-errors"
)

// CountryCode is a canonical ISO-3166 alpha-3 country code (uppercase).
// Invariant: the value names a real country in the ISO-3166 region table.
//
// Usage: construct via ParseCountryCode at trust boundaries; direct casting
// bypasses validation.
type CountryCode string

// ParseCountryCode normalizes external input to an alpha-3 code.
//
// Accepts exactly 2 or 3 ASCII letters in any case. Alpha-2 codes are mapped
// to their alpha-3 form; alpha-3 codes are validated against the same table.
//
// Errors: returns CodeMalformedCountryCode for wrong length, non-letters, and
// well-formed codes that are not currently assigned to a country (e.g. "ZZ",
// "XYZ", "EU", "UK", "YU", "XK").
func ParseCountryCode(s string) (CountryCode, error) {
	if n := len(s); n != 2 && n != 3 {
		return "", dErrors.New(dErrors.CodeMalformedCountryCode, "country code must be 2 or 3 letters")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return "", dErrors.New(dErrors.CodeMalformedCountryCode, "country code must contain only letters")
		}
	}

	upper := strings.ToUpper(s)
	if len(upper) == 2 && !assignedAlpha2(upper) {
		return "", dErrors.New(dErrors.CodeMalformedCountryCode, "unknown country code")
	}
	region, err := language.ParseRegion(upper)
	if err != nil || !region.IsCountry() || region.Canonicalize() != region {
		return "", dErrors.New(dErrors.CodeMalformedCountryCode, "unknown country code")
	}
	if !assignedAlpha2(region.String()) {
		return "", dErrors.New(dErrors.CodeMalformedCountryCode, "unknown country code")
	}
	iso3 := region.ISO3()
	if len(iso3) != 3 || iso3 == unknownRegionISO3 {
		return "", dErrors.New(dErrors.CodeMalformedCountryCode, "unknown country code")
	}
	return CountryCode(iso3), nil
}

// unknownRegionISO3 is what the region table reports for codes it only
// knows as aliases of "unknown region" (UK, UN, EZ).
const unknownRegionISO3 = "ZZZ"

// notAssigned lists alpha-2 codes the region table still resolves that
// ISO-3166-1 does not assign to a country: transitional reservations for
// withdrawn countries, exceptional reservations, and grouping aliases.
var notAssigned = map[string]struct{}{
	"AN": {}, "BU": {}, "CS": {}, "DD": {}, "FX": {}, "NT": {}, "SU": {}, "TP": {}, "YU": {}, "ZR": {},
	"AC": {}, "CP": {}, "DG": {}, "EA": {}, "EU": {}, "EZ": {}, "IC": {}, "TA": {}, "UK": {}, "UN": {},
}

// assignedAlpha2 rejects the reserved list above and the user-assigned
// ranges AA, QM-QZ, XA-XZ and ZZ.
func assignedAlpha2(a2 string) bool {
	if len(a2) != 2 {
		return false
	}
	if _, ok := notAssigned[a2]; ok {
		return false
	}
	switch {
	case a2 == "AA", a2 == "ZZ":
		return false
	case a2[0] == 'Q' && a2[1] >= 'M':
		return false
	case a2[0] == 'X':
		return false
	}
	return true
}

// String returns the alpha-3 representation.
func (c CountryCode) String() string {
	return string(c)
}

// CountrySet is an immutable set of alpha-3 country codes. The zero value is
// an empty set. Values are safe to share between goroutines.
type CountrySet struct {
	codes map[CountryCode]struct{}
}

// NewCountrySet builds a set from already-parsed codes. Duplicates collapse.
func NewCountrySet(codes ...CountryCode) CountrySet {
	m := make(map[CountryCode]struct{}, len(codes))
	for _, c := range codes {
		m[c] = struct{}{}
	}
	return CountrySet{codes: m}
}

// ParseCountrySet parses every raw code, failing on the first malformed one.
func ParseCountrySet(raw ...string) (CountrySet, error) {
	codes := make([]CountryCode, 0, len(raw))
	for _, r := range raw {
		c, err := ParseCountryCode(r)
		if err != nil {
			return CountrySet{}, err
		}
		codes = append(codes, c)
	}
	return NewCountrySet(codes...), nil
}

// Contains reports whether code is a member.
func (s CountrySet) Contains(code CountryCode) bool {
	_, ok := s.codes[code]
	return ok
}

// Len returns the number of members.
func (s CountrySet) Len() int {
	return len(s.codes)
}

// Codes returns the members in lexical order.
func (s CountrySet) Codes() []CountryCode {
	out := make([]CountryCode, 0, len(s.codes))
	for c := range s.codes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
