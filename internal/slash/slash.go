// Package slash 解析并执行两个前端共享的 "/" 命令
// Package slash parses and runs the "/" commands shared by both front ends
package slash

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"companion/internal/session"
)

// ErrNotCommand is returned by Parse for input that does not start with "/".
var ErrNotCommand = errors.New("not a slash command")

type Kind string

const (
	Help   Kind = "help"
	Clear  Kind = "clear"
	Model  Kind = "model"
	Models Kind = "models"
	Image  Kind = "image"
	Play   Kind = "play"
	Quit   Kind = "quit"
)

// Command is a parsed slash command.
type Command struct {
	Kind     Kind
	Model    string       // /model <id>
	Path     string       // /image <path>
	Mode     session.Mode // /image ... [ocr|text|vision|description]
	Question string       // /image ... [question]
	N        int          // /play [n]
}

// Usage lines shown by /help and on parse errors.
var Usage = map[Kind]string{
	Help:   "/help",
	Clear:  "/clear",
	Model:  "/model [id]",
	Models: "/models",
	Image:  "/image <path> [ocr|text|vision|description] [--] [question...]",
	Play:   "/play [n]",
	Quit:   "/quit",
}

// Order is the display order of commands.
var Order = []Kind{Help, Clear, Model, Models, Image, Play, Quit}

// IsCommand reports whether input should be handled as a slash command.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// Parse 解析 "/" 命令
// Parse parses a "/" command line
func Parse(input string) (Command, error) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{}, ErrNotCommand
	}
	fields := strings.Fields(strings.TrimPrefix(trimmed, "/"))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "help", "?":
		return Command{Kind: Help}, nil
	case "clear", "reset":
		return Command{Kind: Clear}, nil
	case "quit", "exit", "q":
		return Command{Kind: Quit}, nil
	case "models":
		return Command{Kind: Models}, nil
	case "model":
		return Command{Kind: Model, Model: strings.Join(args, " ")}, nil
	case "play":
		cmd := Command{Kind: Play}
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return Command{}, usageError(Play)
			}
			cmd.N = n
		}
		return cmd, nil
	case "image", "img":
		if len(args) == 0 {
			return Command{}, usageError(Image)
		}
		cmd := Command{Kind: Image, Path: args[0], Mode: session.ModeVision}
		// 第一个词若是模式名则作为模式；"--" 之后全部是问题
		rest := args[1:]
		if len(rest) > 0 && rest[0] != "--" {
			if mode, err := session.ParseMode(rest[0]); err == nil {
				cmd.Mode = mode
				rest = rest[1:]
			}
		}
		if len(rest) > 0 && rest[0] == "--" {
			rest = rest[1:]
		}
		cmd.Question = strings.Join(rest, " ")
		return cmd, nil
	default:
		return Command{}, fmt.Errorf("unknown command: /%s", name)
	}
}

func usageError(k Kind) error {
	return fmt.Errorf("usage: %s", Usage[k])
}
