package llm

import (
	"fmt"
	"strings"
)

// cleanMarkdownWrapper strips the ```json fences some models insist on
// wrapping structured output in.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx >= 0 {
			content = content[idx+1:]
		} else {
			content = strings.TrimPrefix(content, "```json")
			content = strings.TrimPrefix(content, "```")
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	return strings.TrimSpace(content)
}

// extractJSONObject pulls the outermost JSON object or array out of a
// response that may carry prose around it.
func extractJSONObject(content string) (string, error) {
	content = cleanMarkdownWrapper(content)

	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return "", fmt.Errorf("no JSON object found in response")
	}

	open := content[start]
	var closing byte = '}'
	if open == '[' {
		closing = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == closing:
			depth--
			if depth == 0 {
				return content[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("unterminated JSON object in response")
}
