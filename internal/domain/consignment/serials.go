package consignment

import (
	"fmt"
	"math/big"
	"strings"
)

// MaxRangeSize caps how many serials one range may expand to.
const MaxRangeSize = 1_000_000

// ExpandSerials returns the explicit serials followed by every member of each
// range, without duplicates. A range shares the non-numeric prefix of its
// start and counts the trailing digits inclusively, zero-padded to the width
// of start's digits. A range whose ends carry no trailing digits contributes
// just its two ends.
func ExpandSerials(explicit []string, ranges []SerialRange) ([]string, error) {
	seen := make(map[string]struct{}, len(explicit))
	out := make([]string, 0, len(explicit))
	add := func(serial string) {
		serial = strings.TrimSpace(serial)
		if serial == "" {
			return
		}
		if _, ok := seen[serial]; ok {
			return
		}
		seen[serial] = struct{}{}
		out = append(out, serial)
	}

	for _, s := range explicit {
		add(s)
	}

	for _, r := range ranges {
		start := strings.TrimSpace(r.Start)
		end := strings.TrimSpace(r.End)
		startPrefix, startDigits := splitTrailingDigits(start)
		endPrefix, endDigits := splitTrailingDigits(end)
		if startDigits == "" || endDigits == "" {
			add(start)
			add(end)
			continue
		}
		if startPrefix != endPrefix {
			return nil, fmt.Errorf("%w: %q..%q prefixes differ", ErrInvalidRange, start, end)
		}

		lo, _ := new(big.Int).SetString(startDigits, 10)
		hi, _ := new(big.Int).SetString(endDigits, 10)
		span := new(big.Int).Sub(hi, lo)
		if span.Sign() < 0 {
			return nil, fmt.Errorf("%w: %q is after %q", ErrInvalidRange, start, end)
		}
		if span.Cmp(big.NewInt(MaxRangeSize-1)) > 0 {
			return nil, fmt.Errorf("%w: %q..%q exceeds %d serials", ErrInvalidRange, start, end, MaxRangeSize)
		}

		width := len(startDigits)
		one := big.NewInt(1)
		for n := new(big.Int).Set(lo); n.Cmp(hi) <= 0; n.Add(n, one) {
			add(startPrefix + leftPad(n.String(), width))
		}
	}
	return out, nil
}

func splitTrailingDigits(s string) (prefix string, digits string) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	return s[:i], s[i:]
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
