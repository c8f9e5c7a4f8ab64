package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "nagoya/pkg/domain-errors"
)

const listing = `[
	{"code2":"DE","code3":"DEU","treaties":{"XXVII8b":{"party":"2016-07-21"}}},
	{"code2":"AU","code3":"AUS","treaties":{"XXVII8b":{"party":"2020-01-01"}}},
	{"code2":"US","code3":"USA","treaties":{"XXVII8b":{"party":null}}}
]`

func newRegistry(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listing))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCountries(t *testing.T) {
	registry := newRegistry(t)

	out, err := execute(t, "countries", "--absch-url", registry.URL)
	require.NoError(t, err)
	assert.Equal(t, "AUS\nDEU\n", out)
}

func TestCountries_JSON(t *testing.T) {
	registry := newRegistry(t)

	out, err := execute(t, "countries", "--absch-url", registry.URL, "-o", "json")
	require.NoError(t, err)
	var resp struct {
		Count     int      `json:"count"`
		Countries []string `json:"countries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, []string{"AUS", "DEU"}, resp.Countries)
}

func TestCheck_Country(t *testing.T) {
	registry := newRegistry(t)

	out, err := execute(t, "check", "--absch-url", registry.URL, "--country", "de")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = execute(t, "check", "--absch-url", registry.URL, "--country", "USA")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)

	_, err = execute(t, "check", "--absch-url", registry.URL, "--country", "XYZ")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMalformedCountryCode))
}

func TestCheck_Coordinates(t *testing.T) {
	registry := newRegistry(t)
	geocoder := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		_, _ = w.Write([]byte(`{"address":{"country_code":"au"}}`))
	}))
	t.Cleanup(geocoder.Close)

	out, err := execute(t, "check", "--absch-url", registry.URL,
		"--lat=-35.28", "--lon=149.13", "--nominatim-host", geocoder.URL, "-o", "json")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, `"check_result": true`), out)
}

func TestCheck_FlagRules(t *testing.T) {
	registry := newRegistry(t)

	_, err := execute(t, "check", "--absch-url", registry.URL)
	require.Error(t, err, "one of --country or --lat is required")

	_, err = execute(t, "check", "--absch-url", registry.URL, "--country", "DE", "--lat", "1", "--lon", "1")
	require.Error(t, err)

	_, err = execute(t, "check", "--absch-url", registry.URL, "--lat", "1")
	require.Error(t, err)

	t.Setenv("NOMINATIM_HOST", "")
	_, err = execute(t, "check", "--absch-url", registry.URL, "--lat", "1", "--lon", "1", "--nominatim-host", "")
	require.Error(t, err)
}

func TestRoot_RejectsUnknownOutput(t *testing.T) {
	_, err := execute(t, "countries", "-o", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}
