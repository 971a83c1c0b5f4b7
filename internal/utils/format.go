package utils

import (
	"fmt"
	"strings"
	"time"
)

// Number formats large numbers with commas for readability.
// For example: 1234567 becomes "1,234,567"
func Number(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return sign + str
	}

	var b strings.Builder
	b.WriteString(sign)
	for i, digit := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	return b.String()
}

// Bytes formats a byte count with a binary unit suffix.
// Examples: 512 -> "512 B", 1536 -> "1.5 KiB", 3221225472 -> "3.0 GiB"
func Bytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Duration formats time duration in human-readable form.
// Examples:
//   - Less than 1 second: "0s"
//   - Less than 1 minute: "5.2s"
//   - Less than 1 hour: "3m5.2s"
//   - 1 hour or more: "2h15m"
func Duration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := d.Seconds() - float64(minutes*60)
		return fmt.Sprintf("%dm%.1fs", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, minutes)
}

// Rate formats per-second rates with K/M suffixes.
// Examples:
//   - Less than 1,000: "123.45"
//   - Less than 1,000,000: "12.34K"
//   - 1,000,000 or more: "12.34M"
func Rate(rate float64) string {
	if rate < 1000 {
		return fmt.Sprintf("%.2f", rate)
	} else if rate < 1000000 {
		return fmt.Sprintf("%.2fK", rate/1000)
	}
	return fmt.Sprintf("%.2fM", rate/1000000)
}
