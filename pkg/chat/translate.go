package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/jmuk/blogsearch/pkg/chat/agent"
	"github.com/jmuk/blogsearch/pkg/chat/history"
	"github.com/jmuk/blogsearch/pkg/retry"
)

// Translate asks for a translation in one completion call without tools.
func Translate(ctx context.Context, client agent.Client, language, text string) (string, error) {
	o := &loopOptions{completionTimeout: 2 * time.Minute, retry: retry.Once}
	resp, err := o.complete(ctx, client, agent.Request{
		Messages: history.New(translatePrompt(language, text)).Messages(),
		Mode:     agent.ModeNone,
	})
	if err != nil {
		return "", err
	}
	if resp.FunctionCall != nil {
		return "", fmt.Errorf("unexpected function call %s", resp.FunctionCall.Name)
	}
	return resp.Content, nil
}
