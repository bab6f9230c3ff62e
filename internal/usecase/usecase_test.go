package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/quicklink/internal/entity"
)

type mockURLRepository struct {
	mock.Mock
}

func (m *mockURLRepository) Save(ctx context.Context, url *entity.URL) (*entity.URL, error) {
	args := m.Called(ctx, url)
	res, _ := args.Get(0).(*entity.URL)
	return res, args.Error(1)
}

func (m *mockURLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	args := m.Called(ctx, shortCode)
	res, _ := args.Get(0).(*entity.URL)
	return res, args.Error(1)
}

func (m *mockURLRepository) RetrieveAll(ctx context.Context) ([]*entity.URL, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]*entity.URL)
	return res, args.Error(1)
}

func (m *mockURLRepository) MarkInactive(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockURLRepository) IncrementClicks(ctx context.Context, id string) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type URLUseCaseTestSuite struct {
	suite.Suite
	errUnknown  error
	urlRepoMock *mockURLRepository
	uc          *URLUseCase
}

func (suite *URLUseCaseTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
}

func (suite *URLUseCaseTestSuite) SetupSubTest() {
	suite.urlRepoMock = new(mockURLRepository)
	suite.uc = New(suite.urlRepoMock)
	suite.uc.now = func() time.Time { return testNow }
}

func (suite *URLUseCaseTestSuite) TearDownSubTest() {
	suite.urlRepoMock.AssertExpectations(suite.T())
}

func newStoredURL(shortCode string) *entity.URL {
	expiresAt := testNow.Add(30 * time.Minute)

	return &entity.URL{
		ID:              "id-" + shortCode,
		OriginalURL:     "https://example.com",
		ShortCode:       shortCode,
		ValidityMinutes: 30,
		CreatedAt:       testNow,
		ExpiresAt:       &expiresAt,
		IsActive:        true,
	}
}

func (suite *URLUseCaseTestSuite) TestShortenURL() {
	ctx := context.Background()

	suite.Run("validation error", func() {
		url, err := suite.uc.ShortenURL(ctx, ShortenInput{OriginalURL: "not-a-url", ShortCode: "bad code"})

		var validationErr *ValidationError
		suite.Require().ErrorAs(err, &validationErr)
		suite.Len(validationErr.Messages, 2)
		suite.Nil(url)
	})

	suite.Run("short code generation error", func() {
		suite.uc.shortCodeLength = -1

		url, err := suite.uc.ShortenURL(ctx, ShortenInput{OriginalURL: "https://example.com"})

		suite.Error(err)
		suite.Nil(url)
	})

	suite.Run("maximum retries error", func() {
		suite.urlRepoMock.
			On("Save", ctx, mock.Anything).
			Times(5).
			Return(nil, entity.ErrShortCodeExists)

		url, err := suite.uc.ShortenURL(ctx, ShortenInput{OriginalURL: "https://example.com"})

		suite.ErrorIs(err, ErrMaxRetriesExceeded)
		suite.Nil(url)
	})

	suite.Run("custom short code exists", func() {
		suite.urlRepoMock.
			On("Save", ctx, mock.MatchedBy(func(u *entity.URL) bool { return u.ShortCode == "taken" })).
			Once().
			Return(nil, entity.ErrShortCodeExists)

		url, err := suite.uc.ShortenURL(ctx, ShortenInput{OriginalURL: "https://example.com", ShortCode: "taken"})

		suite.ErrorIs(err, entity.ErrShortCodeExists)
		suite.Nil(url)
	})

	suite.Run("unknown error", func() {
		suite.urlRepoMock.
			On("Save", ctx, mock.Anything).
			Once().
			Return(nil, suite.errUnknown)

		url, err := suite.uc.ShortenURL(ctx, ShortenInput{OriginalURL: "https://example.com"})

		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		validity := 90.0
		want := newStoredURL("abc123")

		suite.urlRepoMock.
			On("Save", ctx, mock.MatchedBy(func(u *entity.URL) bool {
				return u.ID != "" &&
					len(u.ShortCode) == defaultShortCodeLength &&
					u.OriginalURL == "https://example.com" &&
					u.ValidityMinutes == 90 &&
					u.CreatedAt.Equal(testNow) &&
					u.ExpiresAt != nil && u.ExpiresAt.Equal(testNow.Add(90*time.Minute)) &&
					u.IsActive &&
					u.ClickCount == 0
			})).
			Once().
			Return(want, nil)

		url, err := suite.uc.ShortenURL(ctx, ShortenInput{OriginalURL: "https://example.com", ValidityMinutes: &validity})

		suite.NoError(err)
		suite.Equal(want, url)
	})
}

func (suite *URLUseCaseTestSuite) TestShortenBulk() {
	ctx := context.Background()

	suite.Run("storage failure is reported generically", func() {
		suite.urlRepoMock.
			On("Save", ctx, mock.Anything).
			Once().
			Return(nil, suite.errUnknown)

		res := suite.uc.ShortenBulk(ctx, []ShortenInput{{OriginalURL: "https://example.com"}})

		suite.Empty(res.Results)
		suite.Equal([]ShortenError{{Index: 0, Message: MsgShortenFailed}}, res.Errors)
	})
}

func (suite *URLUseCaseTestSuite) TestResolveShortCode() {
	ctx := context.Background()

	suite.Run("invalid short code", func() {
		url, err := suite.uc.ResolveShortCode(ctx, "not a code!")

		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("url not found", func() {
		suite.urlRepoMock.
			On("RetrieveByShortCode", ctx, "abc123").
			Once().
			Return(nil, entity.ErrURLNotFound)

		url, err := suite.uc.ResolveShortCode(ctx, "abc123")

		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("expired url is not counted", func() {
		stored := newStoredURL("abc123")
		suite.uc.now = func() time.Time { return testNow.Add(31 * time.Minute) }

		suite.urlRepoMock.
			On("RetrieveByShortCode", ctx, "abc123").
			Once().
			Return(stored, nil)

		url, err := suite.uc.ResolveShortCode(ctx, "abc123")

		suite.ErrorIs(err, entity.ErrURLExpired)
		suite.Equal(stored, url)
		suite.urlRepoMock.AssertNotCalled(suite.T(), "IncrementClicks", mock.Anything, mock.Anything)
	})

	suite.Run("click count error", func() {
		suite.urlRepoMock.
			On("RetrieveByShortCode", ctx, "abc123").
			Once().
			Return(newStoredURL("abc123"), nil)
		suite.urlRepoMock.
			On("IncrementClicks", ctx, "id-abc123").
			Once().
			Return(int64(0), suite.errUnknown)

		url, err := suite.uc.ResolveShortCode(ctx, "abc123")

		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		suite.urlRepoMock.
			On("RetrieveByShortCode", ctx, "abc123").
			Once().
			Return(newStoredURL("abc123"), nil)
		suite.urlRepoMock.
			On("IncrementClicks", ctx, "id-abc123").
			Once().
			Return(int64(4), nil)

		url, err := suite.uc.ResolveShortCode(ctx, "abc123")

		suite.NoError(err)
		suite.Equal(int64(4), url.ClickCount)
	})
}

func (suite *URLUseCaseTestSuite) TestDeactivateURL() {
	ctx := context.Background()

	suite.Run("url not found", func() {
		suite.urlRepoMock.
			On("MarkInactive", ctx, "missing").
			Once().
			Return(entity.ErrURLNotFound)

		err := suite.uc.DeactivateURL(ctx, "missing")

		suite.ErrorIs(err, entity.ErrURLNotFound)
	})

	suite.Run("success", func() {
		suite.urlRepoMock.
			On("MarkInactive", ctx, "id-1").
			Once().
			Return(nil)

		err := suite.uc.DeactivateURL(ctx, "id-1")

		suite.NoError(err)
	})
}

func (suite *URLUseCaseTestSuite) TestGetURLStats() {
	ctx := context.Background()

	suite.Run("url not found", func() {
		suite.urlRepoMock.
			On("RetrieveByShortCode", ctx, "missing").
			Once().
			Return(nil, entity.ErrURLNotFound)

		url, err := suite.uc.GetURLStats(ctx, "missing")

		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		stored := newStoredURL("abc123")
		suite.urlRepoMock.
			On("RetrieveByShortCode", ctx, "abc123").
			Once().
			Return(stored, nil)

		url, err := suite.uc.GetURLStats(ctx, "abc123")

		suite.NoError(err)
		suite.Equal(stored, url)
	})
}

func (suite *URLUseCaseTestSuite) TestGetSummary() {
	ctx := context.Background()

	suite.Run("unknown error", func() {
		suite.urlRepoMock.
			On("RetrieveAll", ctx).
			Once().
			Return(nil, suite.errUnknown)

		s, err := suite.uc.GetSummary(ctx)

		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(s)
	})

	suite.Run("success", func() {
		active := newStoredURL("active")
		active.ClickCount = 3

		inactive := newStoredURL("inactive")
		inactive.IsActive = false
		inactive.ClickCount = 2

		expired := newStoredURL("expired")
		past := testNow.Add(-time.Minute)
		expired.ExpiresAt = &past

		suite.urlRepoMock.
			On("RetrieveAll", ctx).
			Once().
			Return([]*entity.URL{active, inactive, expired}, nil)

		s, err := suite.uc.GetSummary(ctx)

		suite.NoError(err)
		suite.Equal(&Summary{TotalURLs: 3, ActiveURLs: 1, ExpiredURLs: 2, TotalClicks: 5}, s)
	})
}

func TestURLUseCase(t *testing.T) {
	suite.Run(t, new(URLUseCaseTestSuite))
}
