package dispatch

import "strings"

// LaunchFailedMarker is the text a remote launcher prints when it could not
// start the payload.
const LaunchFailedMarker = "remote launch failed"

// FailureMarkers are checked in order, case-insensitively, against the
// combined output of a completed remote call. Any match marks the target as
// failed. Plain words like "error" also match unrelated text; that is
// accepted since the remote shell offers no better signal.
var FailureMarkers = []string{
	LaunchFailedMarker,
	"error",
	"denied",
	"exception",
	"is not recognized as an internal or external command",
}

// MatchFailureMarker returns the first marker found in output.
func MatchFailureMarker(output string) (string, bool) {
	lower := strings.ToLower(output)
	for _, marker := range FailureMarkers {
		if strings.Contains(lower, marker) {
			return marker, true
		}
	}
	return "", false
}
