package verified

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatDuration renders a run time in seconds as a compact string such as
// "1h1m1s" or "20m5s500ms". Units that are zero are left out, so a zero
// duration renders as "".
func FormatDuration(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return ""
	}

	whole := int64(math.Floor(seconds))
	days := whole / 86400
	whole %= 86400
	hours := whole / 3600
	whole %= 3600
	minutes := whole / 60
	secs := whole % 60

	var b strings.Builder
	for _, unit := range []struct {
		value  int64
		suffix string
	}{
		{days, "d"},
		{hours, "h"},
		{minutes, "m"},
		{secs, "s"},
	} {
		if unit.value != 0 {
			fmt.Fprintf(&b, "%d%s", unit.value, unit.suffix)
		}
	}

	if ms := milliseconds(seconds); ms != 0 {
		fmt.Fprintf(&b, "%dms", ms)
	}
	return b.String()
}

// milliseconds reads the fractional part from the shortest decimal
// representation of seconds, so 1.5 yields 500 and 0.123456 yields 123.
func milliseconds(seconds float64) int {
	text := strconv.FormatFloat(seconds, 'f', -1, 64)
	dot := strings.IndexByte(text, '.')
	if dot < 0 {
		return 0
	}
	frac := text[dot+1:]
	if len(frac) > 3 {
		frac = frac[:3]
	}
	frac += strings.Repeat("0", 3-len(frac))
	ms, err := strconv.Atoi(frac)
	if err != nil {
		return 0
	}
	return ms
}
