package containers

import (
	"bufio"
	"io"
	"strings"
	"time"
)

// ParseLogLines reads RFC 3339 timestamp-prefixed output, the format both
// `docker logs --timestamps` and the Kubernetes pod log API produce. Lines
// without a parseable timestamp are kept with a zero Timestamp.
func ParseLogLines(r io.Reader, source string) ([]LogLine, error) {
	lines := make([]LogLine, 0)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		line := LogLine{Source: source, Message: text}
		if ts, msg, ok := strings.Cut(text, " "); ok {
			if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				line.Timestamp = parsed.UTC()
				line.Message = msg
			}
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return lines, err
	}
	return lines, nil
}
