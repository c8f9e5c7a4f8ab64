package absch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nagoya/internal/upstream"
	"nagoya/pkg/domain"
	"nagoya/pkg/platform/circuit"
	"nagoya/pkg/platform/sentinel"
)

const listing = `[
	{
		"code2": "AD",
		"code3": "AND",
		"treaties": {
			"XXVII8":  { "party": "2015-05-05" },
			"XXVII8a": { "party": null },
			"XXVII8b": { "party": "2025-10-12" },
			"XXVII8c": { "party": null }
		}
	},
	{
		"code2": "DE",
		"code3": "DEU",
		"treaties": { "XXVII8b": { "party": "2016-07-21" } }
	},
	{
		"code2": "US",
		"code3": "USA",
		"treaties": { "XXVII8b": { "party": null } }
	},
	{
		"code2": "FR",
		"code3": "FRA",
		"treaties": { "XXVII8": { "party": "1994-07-01" } }
	},
	{
		"code2": "EU",
		"code3": "EUR",
		"treaties": { "XXVII8b": { "party": "2014-05-16" } }
	},
	{
		"code2": "NO",
		"code3": "",
		"treaties": { "XXVII8b": { "party": "2013-10-01" } }
	},
	{
		"code2": "AF",
		"code3": "AFG",
		"treaties": { "XXVII8b": { "party": "" } }
	}
]`

func TestParseCountries(t *testing.T) {
	parsed, err := parseCountries([]byte(listing))
	require.NoError(t, err)

	assert.Equal(t, []domain.CountryCode{"AND", "DEU", "NOR"}, parsed.Countries.Codes())
	assert.Equal(t, []string{"EUR"}, parsed.Skipped, "EU is a party but not an ISO country")
}

func TestParseCountries_RejectsInvalidJSON(t *testing.T) {
	_, err := parseCountries([]byte(`{"not":"a list"}`))
	require.Error(t, err)
}

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchImplementingCountries(t *testing.T) {
	t.Run("returns parties from listing", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(listing))
		})
		client, err := New(srv.URL)
		require.NoError(t, err)

		set, err := client.FetchImplementingCountries(context.Background())
		require.NoError(t, err)
		assert.True(t, set.Contains("DEU"))
		assert.False(t, set.Contains("USA"))
	})

	t.Run("server error is an outage", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		client, err := New(srv.URL)
		require.NoError(t, err)

		_, err = client.FetchImplementingCountries(context.Background())
		require.Error(t, err)
		assert.Equal(t, upstream.Outage, upstream.CategoryOf(err))
		assert.True(t, upstream.IsRetryable(err))
	})

	t.Run("garbage body is bad data", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>maintenance</html>"))
		})
		client, err := New(srv.URL)
		require.NoError(t, err)

		_, err = client.FetchImplementingCountries(context.Background())
		require.Error(t, err)
		assert.Equal(t, upstream.BadData, upstream.CategoryOf(err))
	})

	t.Run("empty listing is bad data", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("[]"))
		})
		client, err := New(srv.URL)
		require.NoError(t, err)

		_, err = client.FetchImplementingCountries(context.Background())
		require.Error(t, err)
		assert.Equal(t, upstream.BadData, upstream.CategoryOf(err))
	})

	t.Run("deadline is a timeout", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		})
		client, err := New(srv.URL)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = client.FetchImplementingCountries(ctx)
		require.Error(t, err)
		assert.Equal(t, upstream.Timeout, upstream.CategoryOf(err))
	})

	t.Run("missing url is rejected", func(t *testing.T) {
		_, err := New("")
		require.Error(t, err)
	})
}

func TestFetchImplementingCountries_Breaker(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	breaker := circuit.New("absch", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	client, err := New(srv.URL, WithBreaker(breaker))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err = client.FetchImplementingCountries(ctx)
		require.Error(t, err)
	}
	assert.True(t, breaker.IsOpen())

	_, err = client.FetchImplementingCountries(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load(), "open circuit does not reach the registry")
}

func TestFetchImplementingCountries_BadDataKeepsBreakerClosed(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	})
	breaker := circuit.New("absch", circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Hour))
	client, err := New(srv.URL, WithBreaker(breaker))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = client.FetchImplementingCountries(context.Background())
		require.Error(t, err)
		assert.Equal(t, upstream.BadData, upstream.CategoryOf(err))
		assert.False(t, upstream.IsRetryable(err))
	}
	assert.False(t, breaker.IsOpen())
	assert.Equal(t, circuit.StateClosed, breaker.State())
	assert.Equal(t, int32(3), hits.Load(), "every call reaches the registry")
}

func TestParseCountries_SkipsUnassignedCodes(t *testing.T) {
	parsed, err := parseCountries([]byte(`[
		{ "code2": "UK", "code3": "", "treaties": { "XXVII8b": { "party": "2020-01-01" } } },
		{ "code2": "YU", "code3": "YUG", "treaties": { "XXVII8b": { "party": "2020-01-01" } } },
		{ "code2": "GB", "code3": "GBR", "treaties": { "XXVII8b": { "party": "2020-01-01" } } }
	]`))
	require.NoError(t, err)

	assert.Equal(t, []domain.CountryCode{"GBR"}, parsed.Countries.Codes())
	assert.False(t, parsed.Countries.Contains("ZZZ"))
	assert.Len(t, parsed.Skipped, 2)
}
