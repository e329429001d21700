package logger

import (
	"fmt"
	"regexp"
)

var (
	// durable tier rows carry serialized cache payloads; keep logs readable
	longLiteral = regexp.MustCompile(`'([^']{64,})'`)
	hexBlob     = regexp.MustCompile(`(?i)x'([0-9a-f]{64,})'|0x([0-9a-f]{64,})`)
)

// sanitizeSQL replaces large string and blob literals with their size
func sanitizeSQL(sql string) string {
	sql = hexBlob.ReplaceAllStringFunc(sql, func(m string) string {
		return fmt.Sprintf("<blob %d chars>", len(m))
	})
	return longLiteral.ReplaceAllStringFunc(sql, func(m string) string {
		return fmt.Sprintf("'<%d bytes>'", len(m)-2)
	})
}
