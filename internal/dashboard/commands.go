package dashboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CommandKind is what a line typed into the dashboard asks for.
type CommandKind int

const (
	CommandChat CommandKind = iota
	CommandReply
	CommandDelete
	CommandDigest
	CommandRefresh
	CommandLogout
	CommandQuit
	CommandHelp
)

// Command is one parsed input line.
type Command struct {
	Kind CommandKind
	// Text is the chat message, or the extra reply instruction for /reply.
	Text string
	// Index is the 1-based email number for /reply and /delete.
	Index int
}

// ErrUnknownCommand is returned for an unrecognised slash command.
var ErrUnknownCommand = errors.New("unknown command")

// HelpText lists the slash commands.
const HelpText = "Commands: /reply N [instructions], /delete N, /digest, /refresh, /logout, /quit, /help. " +
	"Anything else is sent to the assistant."

// ParseCommand parses one input line. Lines not starting with "/" are chat
// messages.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: CommandChat, Text: line}, nil
	}

	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])
	args := fields[1:]

	switch name {
	case "/reply", "/delete":
		if len(args) == 0 {
			return Command{}, fmt.Errorf("usage: %s N", name)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return Command{}, fmt.Errorf("%s: %q is not an email number", name, args[0])
		}
		if name == "/delete" {
			return Command{Kind: CommandDelete, Index: n}, nil
		}
		return Command{Kind: CommandReply, Index: n, Text: strings.Join(args[1:], " ")}, nil
	case "/digest":
		return Command{Kind: CommandDigest}, nil
	case "/refresh":
		return Command{Kind: CommandRefresh}, nil
	case "/logout":
		return Command{Kind: CommandLogout}, nil
	case "/quit", "/exit":
		return Command{Kind: CommandQuit}, nil
	case "/help", "/?":
		return Command{Kind: CommandHelp}, nil
	default:
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}
