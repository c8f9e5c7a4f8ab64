package absch

import (
	"encoding/json"
	"strings"

	"nagoya/pkg/domain"
)

// nagoyaTreatyKey is the UN treaty collection id of the Nagoya Protocol
// (chapter XXVII, 8.b).
const nagoyaTreatyKey = "XXVII8b"

// countryInfo is one element of the ABSCH country listing.
type countryInfo struct {
	Code2    string                `json:"code2"`
	Code3    string                `json:"code3"`
	Treaties map[string]treatyInfo `json:"treaties"`
}

// treatyInfo holds the party date; null when the country is not a party.
type treatyInfo struct {
	Party *string `json:"party"`
}

// parseResult separates accepted parties from entries that could not be
// mapped to an ISO-3166 country.
type parseResult struct {
	Countries domain.CountrySet
	Skipped   []string
}

// parseCountries decodes the listing and keeps countries with a Nagoya party
// date. code3 is preferred; code2 is the fallback for entries whose code3 is
// not an ISO alpha-3 code.
func parseCountries(body []byte) (parseResult, error) {
	var infos []countryInfo
	if err := json.Unmarshal(body, &infos); err != nil {
		return parseResult{}, err
	}

	var (
		codes   []domain.CountryCode
		skipped []string
	)
	for _, info := range infos {
		treaty, ok := info.Treaties[nagoyaTreatyKey]
		if !ok || treaty.Party == nil || strings.TrimSpace(*treaty.Party) == "" {
			continue
		}
		code, err := domain.ParseCountryCode(info.Code3)
		if err != nil {
			code, err = domain.ParseCountryCode(info.Code2)
		}
		if err != nil {
			skipped = append(skipped, info.Code3)
			continue
		}
		codes = append(codes, code)
	}
	return parseResult{Countries: domain.NewCountrySet(codes...), Skipped: skipped}, nil
}
