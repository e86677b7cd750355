package chat

import (
	"fmt"
	"strings"
)

// BuildPrompt fills the {site} and {query} placeholders of the template.
func BuildPrompt(template, site, query string) string {
	return strings.NewReplacer("{site}", site, "{query}", query).Replace(template)
}

func translatePrompt(language, text string) string {
	return fmt.Sprintf("Translate the following text into %s. Reply with the translation only.\n\n%s", language, text)
}
