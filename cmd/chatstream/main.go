// Command chatstream is a streaming chat client for OpenAI-compatible APIs.
package main

import "github.com/diogo/chatstream/internal/commands"

func main() {
	commands.Execute()
}
