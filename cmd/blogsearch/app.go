package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jmuk/blogsearch/pkg/chat"
	"github.com/jmuk/blogsearch/pkg/chat/agent"
	"github.com/jmuk/blogsearch/pkg/chat/history"
	"github.com/jmuk/blogsearch/pkg/config"
	"github.com/jmuk/blogsearch/pkg/server"
	"github.com/jmuk/blogsearch/pkg/session"
	"github.com/jmuk/blogsearch/pkg/tools"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v3"
)

// app holds what the commands share for one process run.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	session *session.Session
	mgrs    []tools.Manager
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return ctx, err
	}
	cfg, err := config.LoadConfig(cmd.String("config"))
	if err != nil {
		return ctx, err
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	a.logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))

	cwd, err := os.Getwd()
	if err != nil {
		return ctx, err
	}
	s, err := session.New(cwd, level)
	if err != nil {
		return ctx, err
	}
	a.session = s
	a.logger.Debug("Session started", "id", s.ID(), "logs", s.Path())
	return s.With(ctx), nil
}

func (a *app) after(ctx context.Context, cmd *cli.Command) error {
	var errs []error
	if a.mgrs != nil {
		errs = append(errs, tools.CloseManagers(a.mgrs))
	}
	if a.session != nil {
		errs = append(errs, a.session.Close())
	}
	return errors.Join(errs...)
}

func (a *app) factory(cmd *cli.Command) (agent.Factory, error) {
	return chat.FindFactory(a.cfg, cmd.String("model"))
}

func (a *app) client(ctx context.Context, cmd *cli.Command) (agent.Client, error) {
	f, err := a.factory(cmd)
	if err != nil {
		return nil, err
	}
	client, err := f.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", f.Name(), err)
	}
	return client, nil
}

// searchStack checks both credentials and loads every tool before any query
// is accepted.
func (a *app) searchStack(ctx context.Context, cmd *cli.Command) (*tools.ToolRunner, agent.Client, error) {
	client, err := a.client(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}
	blog, err := tools.NewBlogTools(a.cfg.Search, a.cfg.Fetch)
	if err != nil {
		return nil, nil, err
	}
	a.mgrs = tools.NewManagers(a.cfg, blog)
	for _, m := range a.cfg.MCP {
		a.logger.Debug("Loading MCP server", "server", m.String())
	}
	runner, err := tools.NewRunnerFromManagers(ctx, a.mgrs)
	if err != nil {
		return nil, nil, err
	}
	return runner, client, nil
}

func (a *app) runChat(ctx context.Context, cmd *cli.Command) error {
	runner, client, err := a.searchStack(ctx, cmd)
	if err != nil {
		return err
	}
	return chat.NewSearchChat(chat.NewPromptReader(">"), os.Stdout, a.cfg, runner, client).RunLoop(ctx)
}

func (a *app) runAsk(ctx context.Context, cmd *cli.Command) error {
	keyword := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if keyword == "" {
		return errors.New("ask needs a keyword")
	}
	runner, client, err := a.searchStack(ctx, cmd)
	if err != nil {
		return err
	}
	opts := append(chat.OptionsFromConfig(a.cfg),
		chat.WithOnToolCall(func(call history.FunctionCall) {
			a.logger.Info("Calling", "name", call.Name, "arguments", call.Arguments)
		}))
	res, err := chat.Run(ctx, chat.BuildPrompt(a.cfg.PromptTemplate, a.cfg.Search.Site, keyword), runner, client, opts...)
	if err != nil {
		return err
	}
	fmt.Println(res.Answer)
	return nil
}

func (a *app) runTranslate(ctx context.Context, cmd *cli.Command) error {
	client, err := a.client(ctx, cmd)
	if err != nil {
		return err
	}
	return chat.NewTranslateChat(chat.NewPromptReader(">"), os.Stdout, a.cfg, client).RunLoop(ctx)
}

func (a *app) runModels(ctx context.Context, cmd *cli.Command) error {
	f, err := a.factory(cmd)
	if err != nil {
		return err
	}
	models, err := f.Models(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		fmt.Println(m)
	}
	return nil
}

func (a *app) runServe(ctx context.Context, cmd *cli.Command) error {
	runner, client, err := a.searchStack(ctx, cmd)
	if err != nil {
		return err
	}
	httpLogger, err := a.session.GetLogger("http")
	if err != nil {
		return err
	}
	a.logger.Info("Serving", "addr", a.cfg.Server.Addr)
	return server.New(a.cfg, runner, client, httpLogger).ListenAndServe(ctx)
}
