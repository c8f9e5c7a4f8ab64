// Package ports defines the collaborators the compliance checker depends on,
// so the checker does not know about HTTP clients or cache internals.
package ports

import (
	"context"

	"nagoya/pkg/domain"
)

// ReferenceSource yields the current implementing-country snapshot.
// Implemented by *reference.Cache[domain.CountrySet].
type ReferenceSource interface {
	Get(ctx context.Context) (domain.CountrySet, error)
}

// Geocoder resolves a coordinate pair to the country code reported by the
// geocoding service. The returned string is not normalized.
type Geocoder interface {
	ResolveCountryCode(ctx context.Context, lat, lon float64) (string, error)
}
