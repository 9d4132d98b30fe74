package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/playgrid/fieldbook/models"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

func ValidateDate(value, fieldName string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: fieldName, Message: "is required"}
	}
	if _, err := time.Parse(dateLayout, value); err != nil {
		return &ValidationError{Field: fieldName, Message: "must be formatted YYYY-MM-DD"}
	}
	return nil
}

func ValidateTimeOfDay(value, fieldName string) *ValidationError {
	if _, err := time.Parse(timeLayout, value); err != nil {
		return &ValidationError{Field: fieldName, Message: "must be formatted HH:MM"}
	}
	return nil
}

func ValidateAmount(amount int64, fieldName string) *ValidationError {
	if amount <= 0 {
		return &ValidationError{Field: fieldName, Message: "must be greater than 0"}
	}
	return nil
}

func ValidateEmail(value, fieldName string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: fieldName, Message: "is required"}
	}
	at := strings.Index(value, "@")
	if at <= 0 || at == len(value)-1 || !strings.Contains(value[at+1:], ".") {
		return &ValidationError{Field: fieldName, Message: "must be a valid email address"}
	}
	return nil
}

// ValidateRanges checks each requested range is well-formed and that the
// request does not overlap itself.
func ValidateRanges(ranges []models.TimeRange, fieldName string) ValidationErrors {
	var errs ValidationErrors

	if len(ranges) == 0 {
		errs = append(errs, ValidationError{Field: fieldName, Message: "at least one time range is required"})
		return errs
	}

	for i, r := range ranges {
		name := fmt.Sprintf("%s[%d]", fieldName, i)
		if err := ValidateTimeOfDay(r.Start, name+".start"); err != nil {
			errs = append(errs, *err)
			continue
		}
		if err := ValidateTimeOfDay(r.End, name+".end"); err != nil {
			errs = append(errs, *err)
			continue
		}
		if r.Start >= r.End {
			errs = append(errs, ValidationError{Field: name, Message: "start must be before end"})
		}
	}

	for i := range ranges {
		for j := i + 1; j < len(ranges); j++ {
			if ranges[i].Overlaps(ranges[j]) {
				errs = append(errs, ValidationError{
					Field:   fieldName,
					Message: fmt.Sprintf("ranges %s and %s overlap each other", ranges[i], ranges[j]),
				})
			}
		}
	}

	return errs
}
