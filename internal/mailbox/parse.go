package mailbox

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/microcosm-cc/bluemonday"
)

// ParsedMessage is the decoded view of a RawMessage used for correlation
// and extraction. It is never persisted as such.
type ParsedMessage struct {
	Subject string
	Sender  string
	Body    string
}

// Parse decodes the MIME structure of raw. The body is the text/plain part
// when present, otherwise the text/html part reduced to text. Attachments
// are ignored. A message without a parseable From address yields an empty
// Sender rather than an error.
func Parse(raw []byte) (ParsedMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return ParsedMessage{}, fmt.Errorf("reading message header: %w", err)
	}
	defer mr.Close()

	var parsed ParsedMessage

	parsed.Subject, err = mr.Header.Subject()
	if err != nil {
		parsed.Subject = mr.Header.Get("Subject")
	}

	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		parsed.Sender = from[0].Address
	}

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return parsed, fmt.Errorf("reading message part: %w", err)
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			return parsed, fmt.Errorf("reading %s part: %w", contentType, readErr)
		}

		switch {
		case contentType == "" || strings.HasPrefix(contentType, "text/plain"):
			if textBody == "" {
				textBody = string(body)
			}
		case strings.HasPrefix(contentType, "text/html"):
			if htmlBody == "" {
				htmlBody = string(body)
			}
		}
	}

	parsed.Body = strings.TrimSpace(textBody)
	if parsed.Body == "" && htmlBody != "" {
		parsed.Body = htmlToText(htmlBody)
	}

	return parsed, nil
}

var (
	strictPolicy = bluemonday.StrictPolicy()

	// blockEndPattern matches tags that end a visual line.
	blockEndPattern = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|li|tr|h[1-6])>`)
)

// htmlToText strips markup from an HTML body, keeping line structure.
func htmlToText(body string) string {
	result := blockEndPattern.ReplaceAllString(body, "\n")
	result = html.UnescapeString(strictPolicy.Sanitize(result))

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
