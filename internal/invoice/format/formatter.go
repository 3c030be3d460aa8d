package format

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)
	prefixRe = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{0,15}$`)

	ErrEmptyTemplate   = errors.New("invoice_number_template_empty")
	ErrInvalidSequence = errors.New("invoice_sequence_invalid")
	ErrInvalidPrefix   = errors.New("invoice_prefix_invalid")
	ErrUnresolvedToken = errors.New("invoice_number_unresolved_token")
)

const (
	DefaultInvoiceNumberTemplate = "{PREFIX}-{YYYY}-{SEQ5}"
	DefaultPrefix                = "INV"
)

// NormalizePrefix upper-cases and validates an invoice number prefix.
// An empty prefix falls back to DefaultPrefix.
func NormalizePrefix(prefix string) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return DefaultPrefix, nil
	}
	if !prefixRe.MatchString(prefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	return prefix, nil
}

// FormatInvoiceNumber renders a human-readable invoice number from a template,
// the business prefix, the allocation time, and the allocated sequence.
//
// Supported tokens: {PREFIX}, {YYYY}, {YY}, {MM}, {DD}, {SEQ} and {SEQn}
// where n is the zero padding width. Sequences wider than n are not truncated.
func FormatInvoiceNumber(
	template string,
	prefix string,
	at time.Time,
	seq int64,
) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", ErrEmptyTemplate
	}
	if seq <= 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidSequence, seq)
	}

	normalized, err := NormalizePrefix(prefix)
	if err != nil {
		return "", err
	}

	out := template
	out = strings.ReplaceAll(out, "{PREFIX}", normalized)

	out = strings.ReplaceAll(out, "{YYYY}", at.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", at.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", at.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", at.Format("02"))

	out = strings.ReplaceAll(out, "{SEQ}", strconv.FormatInt(seq, 10))
	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		if len(match) != 2 {
			return m
		}
		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}
		return fmt.Sprintf("%0*d", width, seq)
	})

	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("%w: %s", ErrUnresolvedToken, out)
	}
	return out, nil
}

// ValidateTemplate renders the template with a sample sequence to surface
// unknown tokens at configuration time.
func ValidateTemplate(template string) error {
	_, err := FormatInvoiceNumber(template, DefaultPrefix, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 1)
	return err
}
