package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"nagoya/internal/compliance"
	"nagoya/internal/compliance/ports"
	"nagoya/internal/geocode/nominatim"
	"nagoya/internal/platform/config"
	"nagoya/internal/platform/httpclient"
	"nagoya/internal/platform/logger"
	"nagoya/internal/reference"
	"nagoya/internal/registry/absch"
)

type rootOptions struct {
	abschURL string
	timeout  time.Duration
	output   string
	logLevel string
}

func (o *rootOptions) validate() error {
	if o.output != "text" && o.output != "json" {
		return fmt.Errorf("invalid output format: %s (allowable: text, json)", o.output)
	}
	if o.timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	return logger.NewWithWriter(w, o.logLevel, "text")
}

func (o *rootOptions) registry(log *slog.Logger) (*absch.Client, error) {
	return absch.New(o.abschURL,
		absch.WithHTTPClient(httpclient.New(o.timeout)),
		absch.WithLogger(log),
	)
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "nagoyactl",
		Short:         "Query Nagoya Protocol implementing countries",
		Long:          `A CLI to list the countries implementing the Nagoya Protocol and to run one-off compliance checks against the ABS Clearing-House.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return opts.validate()
		},
	}
	cmd.SetOut(out)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.abschURL, "absch-url", envOr("ABSCH_URL", config.DefaultABSCHURL), "ABS Clearing-House country listing URL")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "timeout for each upstream call")
	flags.StringVarP(&opts.output, "output", "o", "text", "output format (text, json)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr (debug, info, warn, error)")

	cmd.AddCommand(newCountriesCmd(opts), newCheckCmd(opts))
	return cmd
}

func newCountriesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "countries",
		Short: "list implementing countries (alpha-3)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.registry(opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			set, err := client.FetchImplementingCountries(cmd.Context())
			if err != nil {
				return err
			}
			codes := set.Codes()
			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"count": len(codes), "countries": codes})
			}
			for _, c := range codes {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

type checkOptions struct {
	country       string
	lat, lon      float64
	nominatimHost string
	userAgent     string
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	co := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "check a country code or a coordinate pair",
		Example: `  nagoyactl check --country DE
  nagoyactl check --lat 48.85 --lon 2.35 --nominatim-host https://nominatim.example.org`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, opts, co)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&co.country, "country", "", "alpha-2 or alpha-3 country code")
	flags.Float64Var(&co.lat, "lat", 0, "latitude (WGS84 degrees)")
	flags.Float64Var(&co.lon, "lon", 0, "longitude (WGS84 degrees)")
	flags.StringVar(&co.nominatimHost, "nominatim-host", os.Getenv("NOMINATIM_HOST"), "Nominatim base URL for coordinate checks")
	flags.StringVar(&co.userAgent, "user-agent", envOr("NOMINATIM_USER_AGENT", "nagoyactl"), "User-Agent sent to Nominatim")
	cmd.MarkFlagsMutuallyExclusive("country", "lat")
	cmd.MarkFlagsMutuallyExclusive("country", "lon")
	cmd.MarkFlagsRequiredTogether("lat", "lon")
	cmd.MarkFlagsOneRequired("country", "lat")
	return cmd
}

func runCheck(cmd *cobra.Command, opts *rootOptions, co *checkOptions) error {
	ctx := cmd.Context()
	log := opts.logger(cmd.ErrOrStderr())
	byCountry := cmd.Flags().Changed("country")

	var geocoder ports.Geocoder = unconfiguredGeocoder{}
	if !byCountry {
		if co.nominatimHost == "" {
			return errors.New("--nominatim-host (or NOMINATIM_HOST) is required for coordinate checks")
		}
		g, err := nominatim.New(co.nominatimHost,
			nominatim.WithHTTPClient(httpclient.New(opts.timeout)),
			nominatim.WithUserAgent(co.userAgent),
			nominatim.WithLogger(log),
		)
		if err != nil {
			return err
		}
		geocoder = g
	}

	registry, err := opts.registry(log)
	if err != nil {
		return err
	}
	// One-shot process: the TTL only has to outlive this command.
	cache, err := reference.Bootstrap(ctx, registry.FetchImplementingCountries, time.Hour,
		reference.WithLogger(log),
		reference.WithFetchTimeout(opts.timeout),
	)
	if err != nil {
		return err
	}
	checker, err := compliance.New(cache, geocoder, compliance.WithLogger(log), compliance.WithGeocodeTimeout(opts.timeout))
	if err != nil {
		return err
	}

	var (
		result bool
		input  any
	)
	if byCountry {
		input = map[string]string{"probe_country": co.country}
		result, err = checker.CheckByCountryCode(ctx, co.country)
	} else {
		input = map[string]float64{"latitude": co.lat, "longitude": co.lon}
		result, err = checker.CheckByCoordinates(ctx, co.lat, co.lon)
	}
	if err != nil {
		return err
	}

	if opts.output == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]any{"input": input, "check_result": result})
	}
	fmt.Fprintln(cmd.OutOrStdout(), result)
	return nil
}

// unconfiguredGeocoder backs country-code checks, which never geocode.
type unconfiguredGeocoder struct{}

func (unconfiguredGeocoder) ResolveCountryCode(context.Context, float64, float64) (string, error) {
	return "", errors.New("no geocoder configured")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
