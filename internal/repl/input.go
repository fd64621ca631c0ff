package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
)

// LineInput 读取一行输入
// LineInput reads one line of input
type LineInput interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

type basicLineInput struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewBasicLineInput 无行编辑的输入，用于管道或重定向
// NewBasicLineInput reads plain lines, for pipes and redirects
func NewBasicLineInput(in io.Reader, out io.Writer) LineInput {
	return &basicLineInput{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

func (b *basicLineInput) ReadLine(prompt string) (string, error) {
	if b.out != nil {
		fmt.Fprint(b.out, prompt)
	}
	line, err := b.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (b *basicLineInput) Close() error { return nil }

type readlineInput struct {
	instance *readline.Instance
}

func newReadlineInput(historyPath string) (*readlineInput, error) {
	if historyPath != "" {
		if err := os.MkdirAll(filepath.Dir(historyPath), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	instance, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       historyPath,
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, err
	}
	return &readlineInput{instance: instance}, nil
}

func (r *readlineInput) ReadLine(prompt string) (string, error) {
	r.instance.SetPrompt(prompt)
	return r.instance.Readline()
}

func (r *readlineInput) Close() error {
	if r == nil || r.instance == nil {
		return nil
	}
	return r.instance.Close()
}

// NewLineInput 优先使用 readline（带历史文件），失败时回退到基础输入并返回原因
// NewLineInput prefers readline with a history file; on failure it falls back to basic input and returns the cause
func NewLineInput(historyPath string) (LineInput, error) {
	readlineReader, err := newReadlineInput(historyPath)
	if err == nil {
		return readlineReader, nil
	}
	return NewBasicLineInput(os.Stdin, os.Stdout), err
}
