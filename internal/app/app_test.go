package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/quicklink/internal/config"
	"github.com/vadimbarashkov/quicklink/internal/usecase"
	"github.com/vadimbarashkov/quicklink/pkg/evallog"

	delivery "github.com/vadimbarashkov/quicklink/internal/adapter/delivery/http"
)

// APITestSuite runs the HTTP API against the real use case and an SQLite store.
type APITestSuite struct {
	suite.Suite
	logger *httplog.Logger
	server *httptest.Server
	e      *httpexpect.Expect
}

func (suite *APITestSuite) SetupSuite() {
	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})
}

func (suite *APITestSuite) SetupSubTest() {
	cfg := &config.Config{
		Storage: config.Storage{
			Driver:     config.StorageSQLite,
			SQLitePath: filepath.Join(suite.T().TempDir(), "quicklink.db"),
		},
	}

	urlRepo, closeStorage, err := openStorage(context.Background(), cfg, suite.logger.Logger)
	if err != nil {
		suite.T().Fatalf("Failed to open storage: %v", err)
	}
	suite.T().Cleanup(func() {
		closeStorage()
	})

	router := delivery.NewRouter(suite.logger, usecase.New(urlRepo))
	suite.server = httptest.NewServer(router)
	suite.T().Cleanup(func() {
		suite.server.Close()
	})

	suite.e = httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  suite.server.URL,
		Reporter: httpexpect.NewAssertReporter(suite.T()),
		Client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	})
}

func (suite *APITestSuite) shorten(items ...map[string]any) *httpexpect.Object {
	return suite.e.POST("/api/shorten-bulk").
		WithJSON(map[string]any{"urls": items}).
		Expect().
		Status(http.StatusOK).
		JSON().Object()
}

func (suite *APITestSuite) TestLifecycle() {
	suite.Run("shorten, resolve, deactivate", func() {
		resp := suite.shorten(
			map[string]any{"originalUrl": "https://example.com/guide", "shortCode": "guide"},
			map[string]any{"originalUrl": "not a url"},
		)

		resp.Value("results").Array().Length().IsEqual(1)
		resp.Value("errors").Array().Value(0).Object().
			HasValue("index", 1).
			HasValue("error", "Please enter a valid URL")

		created := resp.Value("results").Array().Value(0).Object()
		created.HasValue("shortCode", "guide").HasValue("clickCount", 0).HasValue("validityMinutes", 30)
		id := created.Value("id").String().Raw()

		for i := 1; i <= 3; i++ {
			suite.e.GET("/api/url/guide").
				Expect().
				Status(http.StatusOK).
				JSON().Object().
				HasValue("clickCount", i)
		}

		suite.e.GET("/guide").
			Expect().
			Status(http.StatusFound).
			Header("Location").IsEqual("https://example.com/guide")

		suite.e.GET("/api/url/guide/stats").
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("clickCount", 4)

		suite.e.DELETE(fmt.Sprintf("/api/url/%s", id)).
			Expect().
			Status(http.StatusNoContent)

		suite.e.DELETE(fmt.Sprintf("/api/url/%s", id)).
			Expect().
			Status(http.StatusNoContent)

		expired := suite.e.GET("/api/url/guide").
			Expect().
			Status(http.StatusGone).
			JSON().Object()

		expired.HasValue("message", "This URL has expired")
		expired.Value("data").Object().HasValue("isActive", false).HasValue("clickCount", 4)

		suite.e.GET("/api/stats").
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("totalUrls", 1).
			HasValue("activeUrls", 0).
			HasValue("expiredUrls", 1).
			HasValue("totalClicks", 4)
	})

	suite.Run("duplicate short code", func() {
		suite.shorten(map[string]any{"originalUrl": "https://example.com/a", "shortCode": "same"})

		resp := suite.shorten(map[string]any{"originalUrl": "https://example.com/b", "shortCode": "same"})

		resp.Value("results").Array().IsEmpty()
		resp.Value("errors").Array().Value(0).Object().HasValue("error", "Short code already exists")

		suite.e.GET("/api/urls").
			Expect().
			Status(http.StatusOK).
			JSON().Array().Length().IsEqual(1)
	})

	suite.Run("unknown short code", func() {
		suite.e.GET("/api/url/missing").
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("message", "URL not found")

		suite.e.DELETE("/api/url/missing").
			Expect().
			Status(http.StatusNotFound)
	})
}

func TestAPI(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "fatal", want: evallog.LevelFatalSlog},
		{in: "", want: slog.LevelWarn},
		{in: "verbose", want: slog.LevelWarn},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, parseLevel(tc.in, slog.LevelWarn))
		})
	}
}

func TestOpenStorage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("memory", func(t *testing.T) {
		repo, closeStorage, err := openStorage(context.Background(), &config.Config{
			Storage: config.Storage{Driver: config.StorageMemory},
		}, logger)

		require.NoError(t, err)
		assert.NotNil(t, repo)
		assert.NoError(t, closeStorage())
	})

	t.Run("unknown driver", func(t *testing.T) {
		repo, _, err := openStorage(context.Background(), &config.Config{
			Storage: config.Storage{Driver: "redis"},
		}, logger)

		assert.Error(t, err)
		assert.Nil(t, repo)
	})
}
