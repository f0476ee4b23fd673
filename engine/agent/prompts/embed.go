package prompts

import "embed"

// TemplateFS exposes the agent prompt templates.
//
//go:embed templates/*.tmpl
var TemplateFS embed.FS
