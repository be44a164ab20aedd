package llm

import "strings"

// StripFences removes a surrounding markdown code fence from model output.
func StripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	var kept []string
	for _, line := range strings.Split(t, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// ExtractJSONObject pulls the outermost {...} span out of model output,
// tolerating prose before or after it. Returns "" when no object is found.
func ExtractJSONObject(text string) string {
	t := StripFences(text)
	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start == -1 || end <= start {
		return ""
	}
	return t[start : end+1]
}
