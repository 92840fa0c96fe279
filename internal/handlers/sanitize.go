package handlers

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richText  = bluemonday.UGCPolicy()
	plainText = bluemonday.StrictPolicy()
)

// sanitizeBody keeps safe formatting markup in long-form user content.
func sanitizeBody(s string) string {
	return strings.TrimSpace(richText.Sanitize(s))
}

// sanitizeLine strips every tag from titles and comments.
func sanitizeLine(s string) string {
	return strings.TrimSpace(plainText.Sanitize(s))
}
