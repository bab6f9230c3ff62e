// Package validation checks user input for shortening requests before it
// reaches the storage layer.
package validation

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Messages reported by ValidateInput, in the order they are checked.
const (
	MsgURLRequired     = "URL is required"
	MsgInvalidURL      = "Please enter a valid URL"
	MsgInvalidCode     = "Short code must be alphanumeric"
	MsgInvalidValidity = "Validity must be a positive integer"
)

// MaxShortCodeLength is the longest short code that can be stored.
const MaxShortCodeLength = 50

// MaxValidityMinutes is the longest validity window whose expiry still fits a time.Duration.
const MaxValidityMinutes = int(math.MaxInt64 / int64(time.Minute))

var validityTag = "min=1,max=" + strconv.Itoa(MaxValidityMinutes)

var validate = validator.New()

// Result is the outcome of ValidateInput.
type Result struct {
	Valid  bool
	Errors []string
}

// ValidateURL reports whether candidate is an absolute URL with a scheme and a host.
func ValidateURL(candidate string) bool {
	if err := validate.Var(candidate, "required,url"); err != nil {
		return false
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}

	return u.Scheme != "" && u.Host != ""
}

// ValidateShortCode reports whether candidate is usable as a custom short code.
// An empty candidate means no code was supplied and is accepted.
func ValidateShortCode(candidate string) bool {
	return validate.Var(candidate, "omitempty,alphanum,max=50") == nil
}

// ValidateValidityMinutes reports whether candidate is a whole number of minutes
// between 1 and MaxValidityMinutes.
// A nil candidate means the default applies and is accepted.
func ValidateValidityMinutes(candidate *float64) bool {
	if candidate == nil {
		return true
	}

	if *candidate != math.Trunc(*candidate) {
		return false
	}

	return validate.Var(*candidate, validityTag) == nil
}

// ValidateInput runs every check and collects one message per failing check.
// Surrounding whitespace in originalURL is ignored.
func ValidateInput(originalURL, shortCode string, validityMinutes *float64) Result {
	var errs []string

	originalURL = strings.TrimSpace(originalURL)

	switch {
	case originalURL == "":
		errs = append(errs, MsgURLRequired)
	case !ValidateURL(originalURL):
		errs = append(errs, MsgInvalidURL)
	}

	if !ValidateShortCode(shortCode) {
		errs = append(errs, MsgInvalidCode)
	}

	if !ValidateValidityMinutes(validityMinutes) {
		errs = append(errs, MsgInvalidValidity)
	}

	return Result{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}
