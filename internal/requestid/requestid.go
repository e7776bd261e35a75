// Package requestid generates and validates the canonical request identifier
// used to correlate one inbound request across logs, upstream calls, and the
// response envelope.
//
// The format is "req-{yyyyMMddHHmmss}-{uuid-v4}". Uniqueness comes entirely
// from the UUID component; the timestamp prefix exists so identifiers sort
// usefully in logs, nothing more.
package requestid

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Header is the HTTP header the identifier travels under, both inbound
// (optionally supplied by a proxy) and outbound (echoed on every response and
// attached to every upstream call).
const Header = "x-request-id"

const timestampLayout = "20060102150405"

var pattern = regexp.MustCompile(
	`^req-(\d{14})-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`,
)

// Generate produces a fresh identifier.
func Generate() string {
	return fmt.Sprintf("req-%s-%s", time.Now().Format(timestampLayout), uuid.NewString())
}

// Validate reports whether id matches the canonical format exactly:
// 14 digits, a dash, then a lowercase UUID in 8-4-4-4-12 grouping.
//
// Any identifier received from the outside (e.g. a tracing header set by an
// upstream proxy) must pass Validate before being reused; callers fall back to
// Generate otherwise.
func Validate(id string) bool {
	return pattern.MatchString(id)
}

// ExtractTimestamp returns the 14-digit timestamp segment of id. The second
// return value is false when id does not match the canonical format.
//
// The segment is returned as a raw string rather than a parsed time: the
// format carries no timezone, and callers only use it for log ordering.
func ExtractTimestamp(id string) (string, bool) {
	m := pattern.FindStringSubmatch(id)
	if m == nil {
		return "", false
	}
	return m[1], true
}
