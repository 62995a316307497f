package gateway

import (
	"strconv"
	"strings"
)

// ParseCount converts form input to a step count. Anything other than a
// non-negative base-10 integer fails with ErrInvalidCount.
func ParseCount(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, &SubmitError{Code: CodeInvalidCount, Message: "step count is required"}
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, &SubmitError{Code: CodeInvalidCount, Message: "step count must be a number"}
	}
	if n < 0 {
		return 0, &SubmitError{Code: CodeInvalidCount, Message: "step count cannot be negative"}
	}
	return n, nil
}
