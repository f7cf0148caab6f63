package narrate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sagewright/colossi/pkg/provider/llm"
)

const safetySystemPrompt = `You are a content safety checker. Evaluate the following content
for appropriateness in a family-friendly fantasy game. Check for:
- Excessive violence
- Inappropriate language
- Adult content
- Harmful themes

Respond with either 'SAFE' or 'UNSAFE' followed by a reason if unsafe.`

const rewriteSystemPrompt = `Rewrite the following game content to be family-friendly
while maintaining the fantasy game context and core meaning.`

// SafetyChecker moderates narration output through the same chat provider as
// the narrator, with a different role prompt. A failed moderation call is
// treated as safe so moderation never blocks play.
type SafetyChecker struct {
	provider llm.Provider
	log      *slog.Logger
}

// NewSafetyChecker constructs a SafetyChecker. A nil logger uses the default.
func NewSafetyChecker(provider llm.Provider, log *slog.Logger) *SafetyChecker {
	if log == nil {
		log = slog.Default()
	}
	return &SafetyChecker{provider: provider, log: log}
}

// Check reports whether content is appropriate. The verdict is the first
// token of the model's reply.
func (c *SafetyChecker) Check(ctx context.Context, content string) bool {
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: safetySystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: content}},
	})
	if err != nil {
		c.log.Warn("safety check failed, passing content through", "error", err)
		return true
	}
	verdict := strings.ToUpper(strings.TrimSpace(resp.Content))
	return strings.HasPrefix(verdict, "SAFE")
}

// Sanitize returns content unchanged when it passes Check, otherwise asks the
// model for a family-friendly rewrite. When the rewrite itself fails the
// original content is returned.
func (c *SafetyChecker) Sanitize(ctx context.Context, content string) string {
	if c.Check(ctx, content) {
		return content
	}
	c.log.Info("rewriting flagged narration")
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: rewriteSystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: content}},
	})
	if err != nil {
		c.log.Warn("rewrite failed, keeping original narration", "error", err)
		return content
	}
	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return content
	}
	return out
}
