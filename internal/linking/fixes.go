package linking

import (
	"regexp"
	"strings"

	"github.com/rohankatakam/bicmine/internal/models"
)

// fixesPattern matches "Fixes: <hash>" where the hash is 5 to 40 lowercase
// hex characters. The separator is any Unicode whitespace except newline,
// NBSP included. The hash must not run into a Unicode letter, digit or
// underscore.
var fixesPattern = regexp.MustCompile(
	`Fixes:[\t\v\f\r\x{1c}-\x{1f}\x{85}\p{Z}]+([0-9a-f]{5,40})(?:[^\p{L}\p{N}_]|$)`)

// Quotes and parentheses around the hash or the summary break the match
var messageSimplifier = strings.NewReplacer(`"`, "", "(", " ", ")", " ")

// ExtractFixes scans a commit message for a fix declaration.
// Returns the declared identifier (not yet truncated) and how the message
// was classified. A nil message means the record had no message field.
func ExtractFixes(message *string) (string, models.FixesKind) {
	if message == nil {
		return "", models.FixesNoMessage
	}
	if !strings.Contains(*message, "Fixes") {
		return "", models.FixesNotDeclared
	}

	match := fixesPattern.FindStringSubmatch(messageSimplifier.Replace(*message))
	if match == nil {
		return "", models.FixesUnparsed
	}
	return match[1], models.FixesDeclared
}

// Header returns the first line of a message and whether a newline was found
func Header(message string) (string, bool) {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return message[:i], true
	}
	return message, false
}
