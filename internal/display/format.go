package display

import (
	"fmt"
)

var byteUnits = []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

// FormatBytes returns a binary-unit size such as "700.0 MiB". Negative
// sizes keep their sign.
func FormatBytes(n int64) string {
	if n < 0 {
		return "-" + FormatBytes(-n)
	}
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	v := float64(n) / 1024
	unit := 0
	for v >= 1024 && unit < len(byteUnits)-1 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", v, byteUnits[unit])
}

// FormatSavings describes how much smaller output is than input, e.g.
// "2.0 MiB (66.7%)". Growth comes out negative; an empty input reports
// "0 B".
func FormatSavings(input, output int64) string {
	if input <= 0 {
		return "0 B"
	}
	saved := input - output
	return fmt.Sprintf("%s (%.1f%%)", FormatBytes(saved), float64(saved)*100/float64(input))
}

// FormatBitrateLabel returns a short bitrate label such as "800 kbps" or
// "4.5 Mbps".
func FormatBitrateLabel(kbps int64) string {
	if kbps < 1000 {
		return fmt.Sprintf("%d kbps", kbps)
	}
	return fmt.Sprintf("%.1f Mbps", float64(kbps)/1000)
}
