package agent

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/taskchat/taskchat/engine/agent/prompts"
	"github.com/taskchat/taskchat/engine/item"
	"github.com/taskchat/taskchat/engine/tool"
)

type promptTools struct {
	Create string
	List   string
	Update string
	Delete string
}

type systemPromptData struct {
	Tools        promptTools
	MaxListLimit int
}

var systemPromptTemplate = template.Must(
	template.New("system_prompt").ParseFS(prompts.TemplateFS, "templates/system_prompt.tmpl"),
).Lookup("system_prompt.tmpl")

// RenderSystemPrompt renders the instructions sent ahead of every conversation.
func RenderSystemPrompt() (string, error) {
	data := systemPromptData{
		Tools: promptTools{
			Create: tool.CreateItem,
			List:   tool.ListItems,
			Update: tool.UpdateItem,
			Delete: tool.DeleteItem,
		},
		MaxListLimit: item.MaxListLimit,
	}
	var buf bytes.Buffer
	if err := systemPromptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
