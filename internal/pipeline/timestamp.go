package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"resyncd/internal/services"
)

// ParseTimestamp converts "90", "1:30", or "0:01:30" to seconds.
func ParseTimestamp(value string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) == 0 || len(parts) > 3 {
		return 0, invalidTimestamp(value)
	}

	total := 0.0
	for _, part := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || n < 0 {
			return 0, invalidTimestamp(value)
		}
		total = total*60 + n
	}
	return total, nil
}

// ParseOffset accepts either a plain timestamp or the subtractive
// "video-audio" form, where the offset is the distance between the two
// marks.
func ParseOffset(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if left, right, found := strings.Cut(value, "-"); found {
		videoMark, err := ParseTimestamp(left)
		if err != nil {
			return 0, err
		}
		audioMark, err := ParseTimestamp(right)
		if err != nil {
			return 0, err
		}
		offset := videoMark - audioMark
		if offset < 0 {
			offset = -offset
		}
		return offset, nil
	}
	return ParseTimestamp(value)
}

func invalidTimestamp(value string) error {
	return services.Wrap(services.ErrValidation, "pipeline", "timestamp",
		fmt.Sprintf("invalid timestamp %q, use mm:ss or mm:ss-mm:ss", value), nil)
}
