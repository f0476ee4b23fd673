//	@title			Taskchat API
//	@version		1.0
//	@description	Taskchat is a conversational agent that manages a personal todo list

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization

//	@tag.name			chat
//	@tag.description	Chat turns and conversation history

//	@tag.name			health
//	@tag.description	Operational endpoints for monitoring and health

package main

import (
	"os"

	"github.com/taskchat/taskchat/cli"
)

func main() {
	cmd := cli.RootCmd()
	if err := cmd.Execute(); err != nil {
		// Exit with error code 1 if command execution fails
		os.Exit(1)
	}
}
