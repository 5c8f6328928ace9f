package services

import (
	"errors"
	"strings"
)

const userMessageMaxLen = 100

// markerMessages maps sentinel markers to user-facing explanations.
var markerMessages = []struct {
	marker  error
	message string
}{
	{ErrAuthRequired, "The source requires a login that has expired. Try again later."},
	{ErrRateLimited, "The source is rate limiting downloads. Wait a minute and try again."},
	{ErrNotFound, "That media could not be found. Check the link and try again."},
	{ErrUnsupportedFormat, "That media is in a format that cannot be processed."},
	{ErrNetwork, "The download failed due to a network problem. Try again."},
	{ErrTimeout, "Processing took too long and was cancelled. Try shorter media."},
	{ErrValidation, "The request was invalid. Check the link and timestamps."},
	{ErrConfiguration, "The service is misconfigured. Contact the operator."},
}

// substringMessages maps raw tool output fragments to user-facing
// explanations for errors that arrive without a marker.
var substringMessages = []struct {
	fragment string
	message  string
}{
	{"cookie", "The source requires a login that has expired. Try again later."},
	{"login required", "The source requires a login that has expired. Try again later."},
	{"403", "The source refused the download. Try again later."},
	{"too large", "That file is too large to process."},
	{"invalid timestamp", "Those timestamps are not valid for this media."},
	{"exceeds duration", "The requested start time is past the end of the media."},
	{"rate", "The source is rate limiting downloads. Wait a minute and try again."},
	{"unsupported url", "That link is not from a supported platform."},
}

// UserMessage converts any pipeline error into a short message safe to show
// to the submitting user. Internal detail is never leaked; unrecognized
// errors fall back to a truncated generic form.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range markerMessages {
		if errors.Is(err, entry.marker) {
			return entry.message
		}
	}
	lower := strings.ToLower(err.Error())
	for _, entry := range substringMessages {
		if strings.Contains(lower, entry.fragment) {
			return entry.message
		}
	}
	msg := "Processing failed: " + err.Error()
	if len(msg) > userMessageMaxLen {
		msg = msg[:userMessageMaxLen]
	}
	return msg
}
