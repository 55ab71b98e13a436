// Package agent wires together the Eino ReAct agent with the Cosmic Works
// lookup tools and the product retriever to form the Cosmo assistant.
// Each agent is bound to one conversation session: it replays the persisted
// history on every turn, runs the ReAct loop (deciding when to call tools and
// when to answer directly), and persists the completed turn back to the
// session store.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/cosmicworks/cosmo/internal/budget"
	"github.com/cosmicworks/cosmo/internal/logging"
	"github.com/cosmicworks/cosmo/internal/session"
)

// systemPrompt establishes the Cosmo persona and the boundaries of what the
// assistant will talk about.
const systemPrompt = `You are a helpful, fun and friendly sales assistant for Cosmic Works,
a bicycle and bicycle accessories store.

Your name is Cosmo.

You are designed to answer questions about the products that Cosmic Works sells,
the customers that buy them, and the sales orders that are placed by customers.

If you don't know the answer to a question, respond with "I don't know."

Only answer questions related to Cosmic Works products, customers, and sales orders.

If a question is not related to Cosmic Works products, customers, or sales orders,
respond with "I only answer questions about Cosmic Works"

## Using Your Tools

- Use vector_search_products for open-ended product questions ("what bikes are
  good for trails?"). Results carry a similarity_score; prefer higher scores.
- Use get_product_by_id / get_product_by_sku when the user names an exact id
  or SKU code.
- Use get_sales_order_by_id and get_customer_by_id for order and customer
  questions.
- A tool result of {"error": "not_found", ...} means the record does not
  exist. Say so plainly; never invent product, customer, or order details.`

// Config holds the dependencies required to construct a CosmoAgent.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// Tools is the list of lookup and search tools available to the agent.
	Tools []tool.BaseTool

	// Sessions is the conversation store the agent loads from and persists to.
	Sessions session.Store

	// SessionID names the conversation this agent is bound to.
	SessionID string

	// MaxContextTokens is the estimated token budget for the full input
	// context (system prompt + history + user message). History is trimmed
	// oldest-first to fit. Defaults to budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// CosmoAgent wraps the Eino ReAct agent with conversation persistence.
// One agent serves one session; the Pool hands out and reuses instances.
type CosmoAgent struct {
	reactAgent *react.Agent

	sessions  session.Store
	sessionID string

	maxContextTokens int
}

// New constructs a CosmoAgent bound to the session named in cfg. The session
// is created and persisted immediately if it does not exist yet, so a brand
// new session id is durable before the first turn completes.
func New(ctx context.Context, cfg *Config) (*CosmoAgent, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("agent: Sessions must not be nil")
	}
	if cfg.SessionID == "" {
		return nil, fmt.Errorf("agent: SessionID must not be empty")
	}

	reactAgent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: cfg.ChatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: cfg.Tools,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("agent: failed to create ReAct agent: %w", err)
	}

	if _, err := cfg.Sessions.LoadOrCreate(ctx, cfg.SessionID); err != nil {
		return nil, fmt.Errorf("agent: failed to open session %s: %w", cfg.SessionID, err)
	}

	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	return &CosmoAgent{
		reactAgent:       reactAgent,
		sessions:         cfg.Sessions,
		sessionID:        cfg.SessionID,
		maxContextTokens: maxCtx,
	}, nil
}

// SessionID returns the id of the conversation this agent serves.
func (a *CosmoAgent) SessionID() string { return a.sessionID }

// Run sends a user prompt through the ReAct loop and returns the assistant's
// final answer. Prior turns from the session are injected before the prompt,
// and the completed (user, assistant) pair is persisted afterwards. If the
// turn fails, nothing is persisted and the history is unchanged. A turn that
// cannot be persisted fails too: a 200 with a lost turn would leave the next
// turn running against truncated history.
func (a *CosmoAgent) Run(ctx context.Context, prompt string) (string, error) {
	sess, err := a.sessions.Load(ctx, a.sessionID)
	if err != nil {
		return "", fmt.Errorf("agent: failed to load session %s: %w", a.sessionID, err)
	}

	messages := a.buildMessages(ctx, sess, prompt)

	out, err := a.reactAgent.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("agent: generate failed: %w", err)
	}

	answer := out.Content

	sess.History = append(sess.History,
		session.Message{Role: session.RoleUser, Content: prompt},
		session.Message{Role: session.RoleAssistant, Content: answer},
	)
	if err := a.sessions.Upsert(ctx, sess); err != nil {
		return "", fmt.Errorf("agent: failed to persist turn for session %s: %w", a.sessionID, err)
	}

	return answer, nil
}

// buildMessages assembles [system, ...history, user], trimming history
// oldest-first to fit the context token budget.
func (a *CosmoAgent) buildMessages(ctx context.Context, sess *session.Session, prompt string) []*schema.Message {
	fixed := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(prompt),
	}

	var historyMsgs []*schema.Message
	for _, m := range sess.History {
		switch m.Role {
		case session.RoleUser:
			historyMsgs = append(historyMsgs, schema.UserMessage(m.Content))
		case session.RoleAssistant:
			historyMsgs = append(historyMsgs, schema.AssistantMessage(m.Content, nil))
		}
	}

	before := len(historyMsgs)
	historyMsgs = budget.TrimHistory(fixed, historyMsgs, a.maxContextTokens)
	if dropped := before - len(historyMsgs); dropped > 0 {
		logging.FromContext(ctx).Warn("budget: dropped history messages to fit context window",
			slog.String("session_id", a.sessionID),
			slog.Int("dropped", dropped),
			slog.Int("retained", len(historyMsgs)),
			slog.Int("max_tokens", a.maxContextTokens),
		)
	}

	result := make([]*schema.Message, 0, len(historyMsgs)+2)
	result = append(result, fixed[0])
	result = append(result, historyMsgs...)
	result = append(result, fixed[1])
	return result
}
