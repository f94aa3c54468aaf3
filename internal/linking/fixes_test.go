package linking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rohankatakam/bicmine/internal/models"
)

func strPtr(s string) *string { return &s }

func TestExtractFixes(t *testing.T) {
	tests := []struct {
		name     string
		message  *string
		wantID   string
		wantKind models.FixesKind
	}{
		{
			name:     "missing message",
			message:  nil,
			wantKind: models.FixesNoMessage,
		},
		{
			name:     "no declaration",
			message:  strPtr("net: tidy up\n\nSigned-off-by: someone"),
			wantKind: models.FixesNotDeclared,
		},
		{
			name:     "lowercase fixes is not a declaration",
			message:  strPtr("fixes: 1a2b3c4d5e6f"),
			wantKind: models.FixesNotDeclared,
		},
		{
			name:     "kernel style with quoted summary",
			message:  strPtr("bug\n\nFixes: 1a2b3c4d5e6f (\"desc\")"),
			wantID:   "1a2b3c4d5e6f",
			wantKind: models.FixesDeclared,
		},
		{
			name:     "parenthesised hash",
			message:  strPtr("Fixes:(abcdef1234)"),
			wantID:   "abcdef1234",
			wantKind: models.FixesDeclared,
		},
		{
			name:     "full forty char hash",
			message:  strPtr("Fixes: 0123456789abcdef0123456789abcdef01234567"),
			wantID:   "0123456789abcdef0123456789abcdef01234567",
			wantKind: models.FixesDeclared,
		},
		{
			name:     "hash on next line is not accepted",
			message:  strPtr("Fixes:\n1a2b3c4d5e6f"),
			wantKind: models.FixesUnparsed,
		},
		{
			name:     "uppercase hex does not match",
			message:  strPtr("Fixes: 1A2B3C4D5E"),
			wantKind: models.FixesUnparsed,
		},
		{
			name:     "too short hash",
			message:  strPtr("Fixes: abcd"),
			wantKind: models.FixesUnparsed,
		},
		{
			name:     "longer than forty is not word bounded",
			message:  strPtr("Fixes: 0123456789abcdef0123456789abcdef012345678"),
			wantKind: models.FixesUnparsed,
		},
		{
			name:     "bugzilla link",
			message:  strPtr("Fixes https://bugzilla.example.org/1234"),
			wantKind: models.FixesUnparsed,
		},
		{
			name:     "first declaration wins",
			message:  strPtr("Fixes: aaaaaaa1 (\"a\")\nFixes: bbbbbbb2 (\"b\")"),
			wantID:   "aaaaaaa1",
			wantKind: models.FixesDeclared,
		},
		{
			name:     "tab separator",
			message:  strPtr("Fixes:\t5e6f7a8b9c"),
			wantID:   "5e6f7a8b9c",
			wantKind: models.FixesDeclared,
		},
		{
			name:     "no-break space separator",
			message:  strPtr("Fixes:\u00a0abcdef1234"),
			wantID:   "abcdef1234",
			wantKind: models.FixesDeclared,
		},
		{
			name:     "vertical tab separator",
			message:  strPtr("Fixes:\vabcdef1234"),
			wantID:   "abcdef1234",
			wantKind: models.FixesDeclared,
		},
		{
			name:     "ideographic space separator",
			message:  strPtr("Fixes:\u3000abcdef1234 (\"x\")"),
			wantID:   "abcdef1234",
			wantKind: models.FixesDeclared,
		},
		{
			name:     "hash running into a non-ascii letter",
			message:  strPtr("Fixes: abcdef1234é"),
			wantKind: models.FixesUnparsed,
		},
		{
			name:     "hash running into an underscore",
			message:  strPtr("Fixes: abcdef1234_old"),
			wantKind: models.FixesUnparsed,
		},
		{
			name:     "hash followed by non-ascii punctuation",
			message:  strPtr("Fixes: abcdef1234\u2026see list"),
			wantID:   "abcdef1234",
			wantKind: models.FixesDeclared,
		},
		{
			name:     "hash at end of message",
			message:  strPtr("bug\n\nFixes: abcdef1234"),
			wantID:   "abcdef1234",
			wantKind: models.FixesDeclared,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, kind := ExtractFixes(tt.message)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestHeader(t *testing.T) {
	h, ok := Header("subject\n\nbody")
	assert.True(t, ok)
	assert.Equal(t, "subject", h)

	h, ok = Header("only line")
	assert.False(t, ok)
	assert.Equal(t, "only line", h)

	h, ok = Header("")
	assert.False(t, ok)
	assert.Equal(t, "", h)
}
