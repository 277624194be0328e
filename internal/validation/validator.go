package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "cineledger/internal/errors"
)

// Seat labels are a row of one or two letters followed by the seat number
var seatLabelPattern = regexp.MustCompile(`^[A-Z]{1,2}[0-9]{1,3}$`)

// Register installs the custom binding tags on gin's validator engine
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}

	if err := v.RegisterValidation("seatlabel", validateSeatLabel); err != nil {
		return fmt.Errorf("failed to register seatlabel: %w", err)
	}

	return nil
}

func validateSeatLabel(fl validator.FieldLevel) bool {
	return IsSeatLabel(fl.Field().String())
}

func IsSeatLabel(label string) bool {
	return seatLabelPattern.MatchString(label)
}

// SeatLabels checks a requested label set: non-empty, well formed and free
// of duplicates.
func SeatLabels(field string, labels []string) error {
	if len(labels) == 0 {
		return apperrors.Validation(field, "at least one seat is required")
	}

	seen := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		if !IsSeatLabel(label) {
			return apperrors.Validation(field, "invalid seat label %q", label)
		}
		if _, dup := seen[label]; dup {
			return apperrors.Validation(field, "duplicate seat label %q", label)
		}
		seen[label] = struct{}{}
	}

	return nil
}

// SameLabelSet reports whether a and b contain the same labels, ignoring order
func SameLabelSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	counts := make(map[string]int, len(a))
	for _, l := range a {
		counts[strings.ToUpper(l)]++
	}
	for _, l := range b {
		key := strings.ToUpper(l)
		if counts[key] == 0 {
			return false
		}
		counts[key]--
	}

	return true
}
