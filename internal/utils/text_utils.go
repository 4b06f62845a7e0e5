package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// TruncationMarker is appended to label sections cut at the size limit
const TruncationMarker = "\n[... section truncated ...]"

// TextProcessor cleans free-text label sections before they are returned
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// NormalizeName canonicalizes a drug name for use in cache keys: Unicode
// compatibility composition, case folding and whitespace collapsing. It never
// rewrites the name in any other way, so "Tylenol" and "acetaminophen" stay
// distinct.
func NormalizeName(name string) string {
	folded := cases.Fold().String(norm.NFKC.String(name))
	return strings.Join(strings.Fields(folded), " ")
}

// TruncateText cuts text to at most maxSize bytes plus the marker. The cut
// backs up to the last word boundary in the second half of the window so
// dosage figures are not split mid-token, and never splits a rune.
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	cut := maxSize
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if i := strings.LastIndexFunc(text[:cut], unicode.IsSpace); i >= maxSize/2 {
		cut = i
	}
	truncated := strings.TrimRightFunc(text[:cut], unicode.IsSpace)

	tp.logger.Debug("Label section truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + TruncationMarker
}

// SanitizeUTF8 drops invalid UTF-8 bytes
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	sanitized := strings.ToValidUTF8(text, "")
	tp.logger.Debug("Label section sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(sanitized)))
	return sanitized
}

// ProcessText sanitizes, trims and truncates a label section
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	return tp.TruncateText(strings.TrimSpace(tp.SanitizeUTF8(text)), maxSize)
}
