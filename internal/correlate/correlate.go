// Package correlate ties vendor replies back to the request they answer
// using the reference tag embedded in the subject line.
package correlate

import (
	"fmt"
	"regexp"
	"strings"
)

// FilterSubstring is the server-side subject filter used to discover
// candidate replies.
const FilterSubstring = "[RFP-REF:"

// refTagPattern matches the subject tag. The tag literal is case-sensitive
// and the space after the colon is optional.
var refTagPattern = regexp.MustCompile(`\[RFP-REF:\s*([a-zA-Z0-9]+)\]`)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Reference identifies the request a reply belongs to and who sent it.
type Reference struct {
	RequestID string
	Sender    string
}

// Match extracts the request reference from subject. It reports false when
// the subject carries no tag or the sender address is empty; both are
// normal non-matches.
func Match(subject, sender string) (Reference, bool) {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return Reference{}, false
	}

	m := refTagPattern.FindStringSubmatch(subject)
	if m == nil {
		return Reference{}, false
	}

	return Reference{RequestID: m[1], Sender: sender}, true
}

// ValidID reports whether id can be carried by the subject tag.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Tag renders the subject tag for a request id.
func Tag(requestID string) string {
	return fmt.Sprintf("[RFP-REF: %s]", requestID)
}

// Subject renders the outbound notification subject for a request.
func Subject(title, requestID string) string {
	return fmt.Sprintf("New Request for Proposal: %s %s", title, Tag(requestID))
}
