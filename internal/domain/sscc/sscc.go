// Package sscc implements the GS1 Serial Shipping Container Code: check digit,
// validation, generation and the EPC URI rendering used as event subject.
package sscc

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"pharmatrace/internal/errs"
)

const (
	Length     = 18
	BaseLength = 17

	MinPrefixLength = 6
	MaxPrefixLength = 12

	DefaultMaxAttempts          = 100
	DefaultFallbackPrefixLength = 8

	epcPrefix = "urn:epc:id:sscc:"
)

// ExistsFunc reports whether a code is already assigned to any shipment,
// package or case.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Codec generates and renders SSCCs for one company prefix.
type Codec struct {
	// CompanyPrefix is the registered GS1 company prefix. Empty produces
	// structurally valid but non-compliant codes.
	CompanyPrefix string
	// ExtensionDigit is the leading packaging-level digit.
	ExtensionDigit int
	// MaxAttempts bounds generation retries on collision.
	MaxAttempts int
	// FallbackPrefixLength splits codes in EPCURI when no prefix is known.
	FallbackPrefixLength int

	digit func() int
}

func NewCodec(companyPrefix string, extensionDigit int) (*Codec, error) {
	prefix := strings.TrimSpace(companyPrefix)
	if prefix != "" && !ValidPrefix(prefix) {
		return nil, errs.Wrapf(ErrInvalidPrefix, "prefix %q", prefix)
	}
	if extensionDigit < 0 || extensionDigit > 9 {
		return nil, ErrInvalidExtension
	}
	return &Codec{
		CompanyPrefix:        prefix,
		ExtensionDigit:       extensionDigit,
		MaxAttempts:          DefaultMaxAttempts,
		FallbackPrefixLength: DefaultFallbackPrefixLength,
	}, nil
}

// Compliant reports whether generated codes carry a registered prefix.
func (c *Codec) Compliant() bool {
	return c.CompanyPrefix != ""
}

// Candidate builds one random checksum-correct code without a uniqueness check.
func (c *Codec) Candidate() string {
	var b strings.Builder
	b.Grow(Length)
	b.WriteByte(byte('0' + c.ExtensionDigit))
	b.WriteString(c.CompanyPrefix)
	for b.Len() < BaseLength {
		b.WriteByte(byte('0' + c.randomDigit()))
	}
	base := b.String()
	check, _ := CheckDigit(base)
	return base + string(rune('0'+check))
}

// Generate returns a code not reported by exists, retrying with fresh
// randomness up to MaxAttempts.
func (c *Codec) Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", errs.Wrap(err, "check context")
		}
		code := c.Candidate()
		if exists == nil {
			return code, nil
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", errs.Wrap(err, "check sscc uniqueness")
		}
		if !taken {
			return code, nil
		}
	}
	return "", errs.Wrapf(ErrExhausted, "after %d attempts", attempts)
}

// EPCURI renders code using the codec's prefix or, when none is configured,
// the fallback prefix length.
func (c *Codec) EPCURI(code string) (string, error) {
	if c.CompanyPrefix != "" {
		return EPCURI(code, len(c.CompanyPrefix))
	}
	fallback := c.FallbackPrefixLength
	if fallback == 0 {
		fallback = DefaultFallbackPrefixLength
	}
	return EPCURI(code, fallback)
}

func (c *Codec) randomDigit() int {
	if c.digit != nil {
		return c.digit()
	}
	return rand.IntN(10)
}

// CheckDigit computes the GS1 mod-10 check digit of a 17-digit base. Weights
// alternate 3,1 starting from the rightmost digit.
func CheckDigit(base string) (int, error) {
	if len(base) != BaseLength || !allDigits(base) {
		return 0, errs.Wrapf(ErrInvalidBase, "base %q", base)
	}
	return mod10(base), nil
}

func mod10(digits string) int {
	sum := 0
	weight := 3
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight = 4 - weight
	}
	return (10 - sum%10) % 10
}

// Validate reports whether code is exactly 18 ASCII digits with a matching
// check digit.
func Validate(code string) bool {
	if len(code) != Length || !allDigits(code) {
		return false
	}
	return mod10(code[:BaseLength]) == int(code[BaseLength]-'0')
}

// ValidPrefix reports whether prefix is a 6-12 digit company prefix.
func ValidPrefix(prefix string) bool {
	return len(prefix) >= MinPrefixLength && len(prefix) <= MaxPrefixLength && allDigits(prefix)
}

// EPCURI renders urn:epc:id:sscc:<prefix>.<serial_reference><check_digit>,
// splitting code after the extension digit at prefixLength.
func EPCURI(code string, prefixLength int) (string, error) {
	if !Validate(code) {
		return "", errs.Wrapf(ErrInvalidCode, "code %q", code)
	}
	if prefixLength < MinPrefixLength || prefixLength > MaxPrefixLength {
		return "", errs.Wrapf(ErrInvalidPrefix, "prefix length %d", prefixLength)
	}
	prefix := code[1 : 1+prefixLength]
	serialRef := code[1+prefixLength : BaseLength]
	return fmt.Sprintf("%s%s.%s%c", epcPrefix, prefix, serialRef, code[BaseLength]), nil
}

// LegacyURI is the unsplit urn:epc:id:sscc:<code> form older events carry.
func LegacyURI(code string) string {
	return epcPrefix + code
}

// FromURI extracts the 18-digit code from any SSCC URI form, or returns the
// input when it already is a bare code.
func FromURI(uri string) (string, bool) {
	if Validate(uri) {
		return uri, true
	}
	rest, ok := strings.CutPrefix(uri, epcPrefix)
	if !ok {
		return "", false
	}
	if Validate(rest) {
		return rest, true
	}
	prefix, tail, ok := strings.Cut(rest, ".")
	if !ok || len(tail) < 2 {
		return "", false
	}
	// tail is serial reference followed by the check digit; the extension
	// digit is not carried in this form, so try each value.
	body := prefix + tail[:len(tail)-1]
	for ext := byte('0'); ext <= '9'; ext++ {
		candidate := string(ext) + body + tail[len(tail)-1:]
		if Validate(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
