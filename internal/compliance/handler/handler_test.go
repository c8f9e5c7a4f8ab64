package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"nagoya/internal/compliance/handler/mocks"
	dErrors "nagoya/pkg/domain-errors"
	"nagoya/pkg/requestcontext"
	"nagoya/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type ComplianceHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestComplianceHandlerSuite(t *testing.T) {
	suite.Run(t, new(ComplianceHandlerSuite))
}

func (s *ComplianceHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.router = chi.NewRouter()
	New(s.service, logger).Register(s.router)
}

func (s *ComplianceHandlerSuite) TestCheckCountryCode() {
	s.Run("implementing country", func() {
		s.service.EXPECT().CheckByCountryCode(gomock.Any(), "DE").Return(true, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/nagoya_check_cc",
			map[string]string{"probe_country": "DE"}))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[CheckResponse](s.T(), rr)
		s.True(resp.CheckResult)
	})

	s.Run("not implementing is false with 200", func() {
		s.service.EXPECT().CheckByCountryCode(gomock.Any(), "USA").Return(false, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/nagoya_check_cc",
			map[string]string{"probe_country": "USA"}))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.JSONEq(`{"check_result":false}`, rr.Body.String())
	})

	s.Run("empty code reaches the checker", func() {
		s.service.EXPECT().CheckByCountryCode(gomock.Any(), "").
			Return(false, dErrors.New(dErrors.CodeMalformedCountryCode, "country code must be 2 or 3 letters"))

		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/nagoya_check_cc",
			`{"probe_country":""}`))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, string(dErrors.CodeMalformedCountryCode))
	})

	s.Run("missing field is a validation error", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/nagoya_check_cc", `{}`))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, string(dErrors.CodeValidation))
	})

	s.Run("invalid json is a bad request", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/nagoya_check_cc", `{"probe_country":`))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("unavailable reference data is 503", func() {
		s.service.EXPECT().CheckByCountryCode(gomock.Any(), "DEU").
			Return(false, dErrors.New(dErrors.CodeUnavailable, "implementing-country data is unavailable"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/nagoya_check_cc",
			map[string]string{"probe_country": "DEU"}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, string(dErrors.CodeUnavailable))
	})
}

func (s *ComplianceHandlerSuite) TestCheckCoordinates() {
	s.Run("resolves and checks", func() {
		s.service.EXPECT().CheckByCoordinates(gomock.Any(), 48.85, 2.35).Return(false, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/nagoya_check_geo",
			`{"coordinates":{"latitude":48.85,"longitude":2.35}}`))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.JSONEq(`{"check_result":false}`, rr.Body.String())
	})

	s.Run("zero coordinates are accepted", func() {
		s.service.EXPECT().CheckByCoordinates(gomock.Any(), 0.0, 0.0).
			Return(false, dErrors.New(dErrors.CodeUnresolvableCoordinates, "coordinates could not be resolved to a country"))

		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/nagoya_check_geo",
			`{"coordinates":{"latitude":0,"longitude":0}}`))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadGateway, string(dErrors.CodeUnresolvableCoordinates))
	})

	s.Run("missing longitude is a validation error", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/nagoya_check_geo",
			`{"coordinates":{"latitude":1}}`))

		s.Contains(rr.Body.String(), "longitude")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, string(dErrors.CodeValidation))
	})

	s.Run("missing coordinates object is a validation error", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/nagoya_check_geo", `{}`))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, string(dErrors.CodeValidation))
	})
}

func (s *ComplianceHandlerSuite) TestRequestIDReachesService() {
	s.service.EXPECT().CheckByCountryCode(gomock.Any(), "AU").
		DoAndReturn(func(ctx context.Context, _ string) (bool, error) {
			assert.Equal(s.T(), "req-123", requestcontext.RequestID(ctx))
			return true, nil
		})

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/nagoya_check_cc", map[string]string{"probe_country": "AU"})
	rr := testutil.DoRequest(s.router, testutil.WithRequestID(req, "req-123"))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}
