package util

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FormatNumber abbreviates large counts: 950, 1.2K, 3.4M
func FormatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	} else if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// FormatDuration renders a millisecond duration: 250ms, 4.2s, 3m 12s
func FormatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	seconds := int64(math.Round(float64(ms%60000) / 1000))
	return fmt.Sprintf("%dm %ds", ms/60000, seconds)
}

// FormatGap renders the pause between two entries. Gaps under 100ms are
// not worth showing and render as "".
func FormatGap(ms int64) string {
	if ms < 100 {
		return ""
	}
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

// FormatTimestamp renders a unix-millisecond time as local 15:04:05.000
func FormatTimestamp(ms int64) string {
	return InZone(time.UnixMilli(ms)).Format("15:04:05.000")
}

// FormatRelativeTime describes how long ago ms was, relative to now
func FormatRelativeTime(ms int64, now time.Time) string {
	diff := now.UnixMilli() - ms
	switch {
	case diff < 60000:
		return "just now"
	case diff < 3600000:
		return fmt.Sprintf("%dm ago", diff/60000)
	case diff < 86400000:
		return fmt.Sprintf("%dh ago", diff/3600000)
	}
	return InZone(time.UnixMilli(ms)).Format("2006-01-02")
}

// FormatCost renders a model cost with four decimals, or $0 when nothing was spent
func FormatCost(amount float64) string {
	if amount <= 0 {
		return "$0"
	}
	return fmt.Sprintf("$%.4f", amount)
}

// FormatCurrency renders an amount with thousands separators: $1,234.50
func FormatCurrency(amount float64) string {
	str := fmt.Sprintf("%.2f", amount)
	intPart, decPart, _ := strings.Cut(str, ".")

	negative := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%s$%s.%s", sign, b.String(), decPart)
}
