package core

import (
	"maps"
	"net/http"
)

// ProblemDocument is the error envelope every API failure is written in.
type ProblemDocument struct {
	Status  int    `json:"status"            example:"404"`
	Error   string `json:"error"             example:"Not Found"`
	Details string `json:"details,omitempty" example:"conversation not found"`
	Code    string `json:"code,omitempty"    example:"NOT_FOUND"`
}

// TurnFailureDocument is written when a chat turn fails after the user message was stored.
type TurnFailureDocument struct {
	ProblemDocument
	AgentReply     string `json:"agent_reply"               example:"Sorry, I couldn't complete that right now."`
	ConversationID string `json:"conversation_id,omitempty" example:"2fYb0m6aPq1cJcE3L6k8t5Qe0sZ"`
	UserMessageID  string `json:"user_message_id,omitempty" example:"2fYb0qKQm1Sx9U2o3cAA7dVhNfT"`
}

// Problem is an API failure before it is rendered.
type Problem struct {
	Status int
	Title  string
	Detail string
	Code   string
	// Extras become top level members; envelope keys are never overridden.
	Extras map[string]any
}

// NewProblem builds a problem titled after its status.
func NewProblem(status int, code, detail string) *Problem {
	return &Problem{Status: status, Title: http.StatusText(status), Code: code, Detail: detail}
}

// WithExtras returns a copy of p carrying extras.
func (p *Problem) WithExtras(extras map[string]any) *Problem {
	out := *p
	out.Extras = maps.Clone(extras)
	return &out
}

// NormalizeProblem fills a missing status with 500 and a missing title from the status.
func NormalizeProblem(problem *Problem) *Problem {
	if problem == nil {
		problem = &Problem{}
	}
	if problem.Status == 0 {
		problem.Status = http.StatusInternalServerError
	}
	if problem.Title == "" {
		problem.Title = http.StatusText(problem.Status)
	}
	return problem
}

// BuildProblemBody renders the envelope members followed by the extras.
func BuildProblemBody(problem *Problem) map[string]any {
	body := make(map[string]any, 4+len(problem.Extras))
	for key, value := range problem.Extras {
		if !isEnvelopeKey(key) {
			body[key] = value
		}
	}
	body["status"] = problem.Status
	body["error"] = problem.Title
	if problem.Detail != "" {
		body["details"] = problem.Detail
	}
	if problem.Code != "" {
		body["code"] = problem.Code
	}
	return body
}

func isEnvelopeKey(key string) bool {
	return key == "status" || key == "error" || key == "details" || key == "code"
}
