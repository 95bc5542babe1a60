package openai

import (
	_ "embed"
	"strings"
)

//go:embed prompts/tailor_v1.txt
var tailorPromptV1 string

// Message is one chat turn sent to the completions API.
type Message struct {
	Role    string
	Content string
}

// BuildPrompt assembles the chat messages for a tailoring request.
func BuildPrompt(resumeText, jobDescription, targetTitle, targetOrg string) []Message {
	system := tailorPromptV1
	system = strings.ReplaceAll(system, "{{RESUME}}", resumeText)
	system = strings.ReplaceAll(system, "{{JOB_DESCRIPTION}}", jobDescription)

	var target strings.Builder
	if strings.TrimSpace(targetTitle) != "" {
		target.WriteString("Target title: " + strings.TrimSpace(targetTitle) + "\n")
	}
	if strings.TrimSpace(targetOrg) != "" {
		target.WriteString("Target organization: " + strings.TrimSpace(targetOrg) + "\n")
	}

	messages := []Message{{Role: "system", Content: system}}
	if target.Len() > 0 {
		messages = append(messages, Message{Role: "user", Content: target.String()})
	} else {
		messages = append(messages, Message{Role: "user", Content: "Tailor the resume now."})
	}
	return messages
}
