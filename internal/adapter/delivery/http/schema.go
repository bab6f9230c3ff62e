package http

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/quicklink/internal/entity"
	"github.com/vadimbarashkov/quicklink/internal/usecase"
)

const statusError = "error"

// shortenItem is a single URL in a bulk shortening request.
// Per-item validation happens in the use case so that one bad item does not fail the batch.
// ValidityMinutes is decoded as any JSON number so that 1.5 is rejected for its item only.
type shortenItem struct {
	OriginalURL     string   `json:"originalUrl"`
	ValidityMinutes *float64 `json:"validityMinutes,omitempty"`
	ShortCode       string   `json:"shortCode,omitempty"`
}

type shortenBulkRequest struct {
	URLs []shortenItem `json:"urls" validate:"required,min=1"`
}

func (req shortenBulkRequest) toInputs() []usecase.ShortenInput {
	inputs := make([]usecase.ShortenInput, 0, len(req.URLs))
	for _, item := range req.URLs {
		inputs = append(inputs, usecase.ShortenInput{
			OriginalURL:     item.OriginalURL,
			ShortCode:       item.ShortCode,
			ValidityMinutes: item.ValidityMinutes,
		})
	}
	return inputs
}

// urlResponse is the JSON representation of a shortened URL record.
type urlResponse struct {
	ID              string     `json:"id"`
	OriginalURL     string     `json:"originalUrl"`
	ShortCode       string     `json:"shortCode"`
	ValidityMinutes int        `json:"validityMinutes"`
	CreatedAt       time.Time  `json:"createdAt"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	IsActive        bool       `json:"isActive"`
	ClickCount      int64      `json:"clickCount"`
}

func toURLResponse(url *entity.URL) urlResponse {
	return urlResponse{
		ID:              url.ID,
		OriginalURL:     url.OriginalURL,
		ShortCode:       url.ShortCode,
		ValidityMinutes: url.ValidityMinutes,
		CreatedAt:       url.CreatedAt,
		ExpiresAt:       url.ExpiresAt,
		IsActive:        url.IsActive,
		ClickCount:      url.ClickCount,
	}
}

func toURLResponses(urls []*entity.URL) []urlResponse {
	resp := make([]urlResponse, 0, len(urls))
	for _, url := range urls {
		resp = append(resp, toURLResponse(url))
	}
	return resp
}

type shortenErrorResponse struct {
	Index   int      `json:"index"`
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type shortenBulkResponse struct {
	Results []urlResponse          `json:"results"`
	Errors  []shortenErrorResponse `json:"errors"`
}

func toShortenBulkResponse(res *usecase.BulkResult) shortenBulkResponse {
	errs := make([]shortenErrorResponse, 0, len(res.Errors))
	for _, e := range res.Errors {
		errs = append(errs, shortenErrorResponse{
			Index:   e.Index,
			Error:   e.Message,
			Details: e.Details,
		})
	}

	return shortenBulkResponse{
		Results: toURLResponses(res.Results),
		Errors:  errs,
	}
}

type summaryResponse struct {
	TotalURLs   int   `json:"totalUrls"`
	ActiveURLs  int   `json:"activeUrls"`
	ExpiredURLs int   `json:"expiredUrls"`
	TotalClicks int64 `json:"totalClicks"`
}

func toSummaryResponse(s *usecase.Summary) summaryResponse {
	return summaryResponse{
		TotalURLs:   s.TotalURLs,
		ActiveURLs:  s.ActiveURLs,
		ExpiredURLs: s.ExpiredURLs,
		TotalClicks: s.TotalClicks,
	}
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Data    *urlResponse      `json:"data,omitempty"`
	Errors  []validationError `json:"errors,omitempty"`
}

// Predefined error responses for common scenarios.
var (
	emptyRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "empty request body",
	}

	invalidRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "invalid request body",
	}

	urlNotFoundResponse = errorResponse{
		Status:  statusError,
		Message: "URL not found",
	}

	serverErrorResponse = errorResponse{
		Status:  statusError,
		Message: "server error occurred",
	}
)

func urlExpiredResponse(url *entity.URL) errorResponse {
	resp := errorResponse{
		Status:  statusError,
		Message: "This URL has expired",
	}

	if url != nil {
		data := toURLResponse(url)
		resp.Data = &data
	}

	return resp
}

func batchTooLargeResponse(maxBatchSize int) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors: []validationError{{
			Field:   "urls",
			Message: fmt.Sprintf("at most %d urls can be shortened at once", maxBatchSize),
		}},
	}
}

func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "min":
		return "at least one url is required"
	default:
		return "invalid value"
	}
}

func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  getValidationErrors(err),
	}
}
