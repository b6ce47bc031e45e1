package chromehost

import (
	"strings"

	"github.com/pinchtab/surf/internal/surface"
)

// Chromium net error codes by the text CDP reports in loadingFailed.
var netErrors = map[string]int{
	"net::ERR_FAILED":                   surface.CodeFailed,
	"net::ERR_ABORTED":                  surface.CodeAborted,
	"net::ERR_TIMED_OUT":                -7,
	"net::ERR_ACCESS_DENIED":            -10,
	"net::ERR_BLOCKED_BY_CLIENT":        -20,
	"net::ERR_BLOCKED_BY_RESPONSE":      -27,
	"net::ERR_CONNECTION_CLOSED":        -100,
	"net::ERR_CONNECTION_RESET":         -101,
	"net::ERR_CONNECTION_REFUSED":       -102,
	"net::ERR_NAME_NOT_RESOLVED":        -105,
	"net::ERR_INTERNET_DISCONNECTED":    -106,
	"net::ERR_SSL_PROTOCOL_ERROR":       -107,
	"net::ERR_ADDRESS_UNREACHABLE":      -109,
	"net::ERR_CONNECTION_TIMED_OUT":     -118,
	"net::ERR_CERT_COMMON_NAME_INVALID": -200,
	"net::ERR_CERT_DATE_INVALID":        -201,
	"net::ERR_CERT_AUTHORITY_INVALID":   -202,
	"net::ERR_TOO_MANY_REDIRECTS":       -310,
	"net::ERR_EMPTY_RESPONSE":           -324,
}

func netErrorCode(text string) int {
	if code, ok := netErrors[strings.TrimSpace(text)]; ok {
		return code
	}
	return surface.CodeFailed
}

// classifyFailure turns a failed document request into a LoadFailed event.
// An aborted request that is no longer the frame's latest document request
// was replaced by another navigation; an aborted latest request was
// stopped by the user.
func classifyFailure(url, errorText string, canceled, latest bool) surface.LoadFailed {
	code := netErrorCode(errorText)
	ev := surface.LoadFailed{
		Code:        code,
		Description: strings.TrimSpace(errorText),
		URL:         url,
		Class:       surface.FailureError,
	}
	if code == surface.CodeAborted || canceled {
		if latest {
			ev.Class = surface.FailureAbortedByUser
		} else {
			ev.Class = surface.FailureSuperseded
		}
	}
	return ev
}
