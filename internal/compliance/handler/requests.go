package handler

// CountryCheckRequest is the HTTP request body for POST /nagoya_check_cc.
// ProbeCountry is a pointer so a missing field is a validation error while an
// empty string reaches the checker and is rejected as malformed.
type CountryCheckRequest struct {
	ProbeCountry *string `json:"probe_country" validate:"required"`
}

// GeoCheckRequest is the HTTP request body for POST /nagoya_check_geo.
type GeoCheckRequest struct {
	Coordinates *Coordinates `json:"coordinates" validate:"required"`
}

// Coordinates are WGS84 degrees. Zero is a valid value, hence the pointers.
type Coordinates struct {
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
}
