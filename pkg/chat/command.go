package chat

import (
	"fmt"
	"io"
	"strings"
)

type command int

const (
	commandNone command = iota
	commandEmpty
	commandQuit
	commandList
	commandUnknown
)

func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if line == "" {
		return commandEmpty
	}
	if strings.EqualFold(line, "exit") {
		return commandQuit
	}
	if line[0] != '/' {
		return commandNone
	}
	words := strings.Fields(line[1:])
	if len(words) == 0 {
		return commandNone
	}
	switch strings.ToLower(words[0]) {
	case "q", "quit", "exit":
		return commandQuit
	case "commands", "help", "?":
		return commandList
	default:
		return commandUnknown
	}
}

func printCommands(w io.Writer) {
	fmt.Fprintln(w, `List of possible commands:
- /help, /commands or /?: show the list of commands.
- exit, /q or /quit: quit this program.
Anything else is sent as a query.`)
}
