package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jmuk/blogsearch/pkg/chat/agent"
	"github.com/jmuk/blogsearch/pkg/chat/history"
	"github.com/jmuk/blogsearch/pkg/config"
	"github.com/jmuk/blogsearch/pkg/session"
	"github.com/jmuk/blogsearch/pkg/tools"
	"github.com/manifoldco/promptui"
)

// LineReader reads one line of user input. io.EOF ends the loop.
type LineReader interface {
	ReadLine() (string, error)
}

type promptReader struct {
	p *promptui.Prompt
}

// NewPromptReader reads lines from the terminal.
func NewPromptReader(label string) LineReader {
	return &promptReader{p: &promptui.Prompt{Label: label}}
}

func (r *promptReader) ReadLine() (string, error) {
	line, err := r.p.Run()
	if errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) {
		return "", io.EOF
	}
	return line, err
}

// Handler answers one line of input.
type Handler func(ctx context.Context, input string) (string, error)

// Chat is the line based front end. Each line is an independent query.
type Chat struct {
	in      LineReader
	out     io.Writer
	banner  string
	handler Handler
}

func NewChat(in LineReader, out io.Writer, banner string, handler Handler) *Chat {
	return &Chat{in: in, out: out, banner: banner, handler: handler}
}

// NewSearchChat answers each keyword with the tool calling loop.
func NewSearchChat(in LineReader, out io.Writer, cfg *config.Config, runner *tools.ToolRunner, client agent.Client) *Chat {
	c := &Chat{
		in:     in,
		out:    out,
		banner: fmt.Sprintf("Enter a keyword to summarize the posts of %s about it (exit to quit).", cfg.Search.Site),
	}
	c.handler = func(ctx context.Context, keyword string) (string, error) {
		fmt.Fprintf(c.out, "Looking up %s...\n", keyword)
		opts := append(OptionsFromConfig(cfg),
			WithOnToolCall(func(call history.FunctionCall) {
				fmt.Fprintf(c.out, "  -> %s %s\n", call.Name, call.Arguments)
			}),
		)
		res, err := Run(ctx, BuildPrompt(cfg.PromptTemplate, cfg.Search.Site, keyword), runner, client, opts...)
		if err != nil {
			return "", err
		}
		return res.Answer, nil
	}
	return c
}

// NewTranslateChat translates each line with a single completion call.
func NewTranslateChat(in LineReader, out io.Writer, cfg *config.Config, client agent.Client) *Chat {
	return &Chat{
		in:     in,
		out:    out,
		banner: fmt.Sprintf("Enter the text to translate into %s (exit to quit).", cfg.TranslateTo),
		handler: func(ctx context.Context, text string) (string, error) {
			return Translate(ctx, client, cfg.TranslateTo, text)
		},
	}
}

// RunLoop reads lines until exit or EOF. A failed query is reported and the
// loop goes on.
func (c *Chat) RunLoop(ctx context.Context) error {
	logger := session.Logger(ctx, "chat")
	fmt.Fprintln(c.out, c.banner)
	for {
		line, err := c.in.ReadLine()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(c.out, "Bye.")
			return nil
		}
		if err != nil {
			return err
		}
		switch parseCommand(line) {
		case commandQuit:
			fmt.Fprintln(c.out, "Bye.")
			return nil
		case commandEmpty:
			continue
		case commandList:
			printCommands(c.out)
			continue
		case commandUnknown:
			fmt.Fprintf(c.out, "Unknown command %s, ignoring...\n", strings.TrimSpace(line))
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		input := strings.TrimSpace(line)
		answer, err := c.handler(ctx, input)
		if err != nil {
			logger.Error("Query failed", "input", input, "error", err)
			fmt.Fprintf(c.out, "Error: %v\n", err)
		} else {
			fmt.Fprintf(c.out, "\n%s\n", answer)
		}
		fmt.Fprintf(c.out, "\n%s\n", c.banner)
	}
}
