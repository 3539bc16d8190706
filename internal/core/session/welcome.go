package session

import (
	"fmt"

	"github.com/cbroglie/mustache"
)

// DefaultFallbackReply is appended when a send fails
const DefaultFallbackReply = "Sorry, I ran into a problem answering that. Please try again."

const defaultWelcome = "Hi! I'm the **{{assistant_id}}** assistant. Ask me anything about its documentation."

// RenderWelcome builds the seed message for a new or cleared transcript
func RenderWelcome(tmpl, assistantID, sourceURL string) string {
	if tmpl == "" {
		tmpl = defaultWelcome
	}

	data := map[string]interface{}{
		"assistant_id": assistantID,
		"source_url":   sourceURL,
	}

	out, err := mustache.Render(tmpl, data)
	if err != nil {
		// Fall back to simple greeting if template fails
		return fmt.Sprintf("Hi! I'm the %s assistant.", assistantID)
	}
	return out
}
