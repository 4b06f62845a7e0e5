package core

import (
	"fmt"
	"strings"
)

// Input bounds enforced before any upstream call
const (
	MinLimit      = 1
	MaxLimit      = 50
	DefaultLimit  = 10
	MinMonthsBack = 1
	MaxMonthsBack = 60
	MaxBatchSize  = 25

	DefaultIdentifierType = "openfda.generic_name"
)

var identifierAliases = map[string]string{
	"generic_name": "openfda.generic_name",
	"brand_name":   "openfda.brand_name",
}

// ValidateDrugName rejects missing, blank and non-string drug names. The
// context names the calling operation and is echoed in the message.
func ValidateDrugName(name any, context string) *ValidationError {
	s, ok := name.(string)
	if !ok && name != nil {
		return &ValidationError{
			Operation: context,
			Field:     "drug_name",
			Value:     name,
			Message:   fmt.Sprintf("Drug name for %s must be a string, got %T", context, name),
		}
	}
	if strings.TrimSpace(s) == "" {
		return &ValidationError{
			Operation: context,
			Field:     "drug_name",
			Value:     s,
			Message:   fmt.Sprintf("Please provide a medication name to search %s", context),
		}
	}
	return nil
}

// NormalizeIdentifierType maps shorthand identifier types to their openFDA
// field names. Unknown values pass through; an empty value selects the
// generic name field.
func NormalizeIdentifierType(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return DefaultIdentifierType
	}
	if canonical, ok := identifierAliases[t]; ok {
		return canonical
	}
	return t
}

// ValidateRange checks that n lies within [min, max], echoing the value back on failure
func ValidateRange(field string, n, min, max int, context string) *ValidationError {
	if n < min || n > max {
		return &ValidationError{
			Operation: context,
			Field:     field,
			Value:     n,
			Message:   fmt.Sprintf("%s must be between %d and %d for %s, got %d", field, min, max, context, n),
		}
	}
	return nil
}

// ValidateLimit checks a result limit
func ValidateLimit(n int, context string) *ValidationError {
	return ValidateRange("limit", n, MinLimit, MaxLimit, context)
}

// ValidateMonthsBack checks a trend analysis window
func ValidateMonthsBack(n int, context string) *ValidationError {
	return ValidateRange("months_back", n, MinMonthsBack, MaxMonthsBack, context)
}

// ValidateDrugList checks the size of a batch request. Individual names are
// validated per item so one bad entry does not reject the batch.
func ValidateDrugList(names []string, context string) *ValidationError {
	if len(names) == 0 {
		return &ValidationError{
			Operation: context,
			Field:     "drug_list",
			Value:     names,
			Message:   fmt.Sprintf("Please provide at least one medication name for %s", context),
		}
	}
	if len(names) > MaxBatchSize {
		return &ValidationError{
			Operation: context,
			Field:     "drug_list",
			Value:     len(names),
			Message: fmt.Sprintf("drug_list for %s accepts at most %d medications, got %d",
				context, MaxBatchSize, len(names)),
		}
	}
	return nil
}
