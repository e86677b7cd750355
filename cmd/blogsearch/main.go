package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	a := &app{}
	cmd := &cli.Command{
		Name:  "blogsearch",
		Usage: "summarize the posts of a blog with a tool calling language model",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "use the named configuration file", Sources: cli.EnvVars("BLOGSEARCH_CONFIG")},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "name of the model config to use", Sources: cli.EnvVars("BLOGSEARCH_MODEL")},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"V"}, Usage: "print debug logs to stderr"},
		},
		Before: a.before,
		After:  a.after,
		Action: a.runChat,
		Commands: []*cli.Command{
			{
				Name:   "chat",
				Usage:  "answer keywords typed at the prompt (default)",
				Action: a.runChat,
			},
			{
				Name:      "ask",
				Usage:     "answer one keyword and exit",
				ArgsUsage: "<keyword>",
				Action:    a.runAsk,
			},
			{
				Name:   "translate",
				Usage:  "translate the lines typed at the prompt",
				Action: a.runTranslate,
			},
			{
				Name:   "models",
				Usage:  "list the models available to the selected model config",
				Action: a.runModels,
			},
			{
				Name:   "serve",
				Usage:  "answer keywords over HTTP",
				Action: a.runServe,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "blogsearch: %s\n", strings.TrimSpace(err.Error()))
		stop()
		os.Exit(1)
	}
}
