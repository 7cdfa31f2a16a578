package billing

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// CountStatementEntries counts the transactions in a bank statement CSV:
// non-blank lines, excluding a leading header that names both the date and
// description columns.
func CountStatementEntries(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count := 0
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			lower := strings.ToLower(line)
			if strings.Contains(lower, "date") && strings.Contains(lower, "description") {
				continue
			}
		}
		count++
	}
	return count, scanner.Err()
}

// CountStatementBytes is CountStatementEntries over an in-memory upload.
func CountStatementBytes(data []byte) int {
	n, _ := CountStatementEntries(bytes.NewReader(data))
	return n
}
