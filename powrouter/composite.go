package powrouter

import "strings"

// Composite request ids pin a poll to the backend that accepted the
// original generate request. The backend id never contains the separator,
// the inner id may.
const requestIdSeparator = ":"

func BuildRequestId(backendId, innerId string) string {
	return backendId + requestIdSeparator + innerId
}

// ParseRequestId splits a composite id on the first separator only.
func ParseRequestId(composite string) (backendId, innerId string, err error) {
	idx := strings.Index(composite, requestIdSeparator)
	if idx < 0 {
		return "", "", NewBadRequestError("invalid id format")
	}
	return composite[:idx], composite[idx+1:], nil
}
