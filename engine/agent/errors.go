package agent

import "errors"

// ErrAgentUnavailable reports that the completion service could not produce a reply.
var ErrAgentUnavailable = errors.New("agent unavailable")

const (
	ErrCodeAgentUnavailable = "AGENT_UNAVAILABLE"
	ErrCodeUnknownTool      = "UNKNOWN_TOOL"
	ErrCodeMaxRounds        = "MAX_TOOL_ROUNDS"
)
