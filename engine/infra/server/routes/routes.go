package routes

import "fmt"

const apiVersion = "v1"

// Version returns the API version used in routing (e.g., "v1").
func Version() string {
	return apiVersion
}

// Base returns the versioned API base path (e.g., "/api/v1").
func Base() string {
	return fmt.Sprintf("/api/%s", Version())
}

// Chat returns the chat base path (e.g., "/api/v1/chat").
func Chat() string {
	return Base() + "/chat"
}

// Conversations returns the conversation listing path.
func Conversations() string {
	return Base() + "/conversations"
}

func Health() string {
	return "/health"
}

func Ready() string {
	return "/ready"
}
