package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"cse-market-assistant/internal/conversation"
	"cse-market-assistant/internal/cse"
	"cse-market-assistant/internal/symbols"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type Config struct {
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	ByAzure    bool   `yaml:"by_azure"`
	APIVersion string `yaml:"api_version"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

// Reply is the gateway output: the assistant text plus the quote that was
// attached to the prompt, if any. IsError marks replies produced by the
// LLM failure path.
type Reply struct {
	Text    string     `json:"text"`
	Quote   *cse.Quote `json:"quote,omitempty"`
	IsError bool       `json:"isError,omitempty"`
}

type chatModel interface {
	Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

type quoteSource interface {
	GetQuote(ctx context.Context, symbol string) (cse.Quote, bool)
}

// Gateway turns a user utterance plus prior history into an assistant reply
// and an optional quote. It holds no state between calls.
type Gateway struct {
	model          chatModel
	modelName      string
	disabledReason string
	market         quoteSource
}

const systemInstruction = `You are a helpful and knowledgeable stock market assistant for the Colombo Stock Exchange (CSE).
Your responses should be professional, concise, and formatted clearly.
When users ask about market trends, share price movements, or company details, provide insightful analysis.
Use bold text for emphasis on key figures.
If you don't know the real-time price (as you are an AI without live market access), you can mention that you are providing general information or historical context, but for this demo, you can invent plausible recent context if needed.`

const llmErrorText = "I'm having trouble connecting to the CSE analysis server right now. Please try again in a moment."

// mockStocks is the demo fallback table used when the live backend yields no
// quote for a known symbol.
var mockStocks = map[string]cse.Quote{
	"JKH": {
		Symbol: "JKH", Name: "JOHN KEELLS HOLDINGS PLC",
		Price: 150.50, Currency: "LKR", Change: 2.30, ChangePercent: 1.55,
		Open: 148.20, High: 151.00, Low: 147.80, LastUpdated: "2 mins ago",
	},
	"DIAL": {
		Symbol: "DIAL", Name: "DIALOG AXIATA PLC",
		Price: 9.20, Currency: "LKR", Change: -0.10, ChangePercent: -1.08,
		Open: 9.30, High: 9.40, Low: 9.10, LastUpdated: "1 min ago",
	},
	"COMB": {
		Symbol: "COMB", Name: "COMMERCIAL BANK OF CEYLON PLC",
		Price: 88.90, Currency: "LKR", Change: 0.50, ChangePercent: 0.56,
		Open: 88.00, High: 89.50, Low: 88.00, LastUpdated: "Just now",
	},
}

// New builds the gateway. A missing API key or model leaves the LLM side
// disabled and every reply comes from the fixed fallback text; quote
// enrichment keeps working either way.
func New(cfg Config, market quoteSource) *Gateway {
	g := &Gateway{market: market}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("OPENAI_MODEL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.APIKey == "" || cfg.Model == "" {
		log.Printf("assistant llm disabled: missing api key or model")
		g.disabledReason = "api_key or model missing"
		return g
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	m, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		ByAzure:    cfg.ByAzure,
		APIVersion: cfg.APIVersion,
		Timeout:    timeout,
	})
	if err != nil {
		log.Printf("assistant llm init error: %v", err)
		g.disabledReason = "init failed"
		return g
	}

	g.model = m
	g.modelName = cfg.Model
	return g
}

// Respond answers one user message given the prior turns. It never returns
// an error: LLM failures degrade to a fixed apology with whatever quote was
// captured before the call.
func (g *Gateway) Respond(ctx context.Context, message string, history []conversation.Turn) Reply {
	quote := g.lookupQuote(ctx, message)

	if g.model == nil {
		return Reply{Text: fallbackText(quote), Quote: quote}
	}

	msgs := make([]*schema.Message, 0, len(history)+2)
	msgs = append(msgs, schema.SystemMessage(systemInstruction))
	for _, t := range history {
		if t.Role == "model" {
			msgs = append(msgs, schema.AssistantMessage(t.Text, nil))
		} else {
			msgs = append(msgs, schema.UserMessage(t.Text))
		}
	}
	msgs = append(msgs, schema.UserMessage(augmentMessage(message, quote)))

	resp, err := g.model.Generate(ctx, msgs)
	if err != nil {
		logLLMError(err)
		return Reply{Text: llmErrorText, Quote: quote, IsError: true}
	}
	return Reply{Text: strings.TrimSpace(resp.Content), Quote: quote}
}

// Ping reports whether the LLM side is live or running in fallback mode.
func (g *Gateway) Ping(ctx context.Context) map[string]any {
	if g.model == nil {
		reason := g.disabledReason
		if reason == "" {
			reason = "not configured"
		}
		return map[string]any{"ok": true, "mode": "fallback", "reason": reason}
	}
	start := time.Now()
	msgs := []*schema.Message{
		schema.SystemMessage("Reply with the single word: pong."),
		schema.UserMessage("ping"),
	}
	_, err := g.model.Generate(ctx, msgs)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		logLLMError(err)
		return map[string]any{"ok": true, "mode": "fallback", "reason": "llm error"}
	}
	return map[string]any{"ok": true, "mode": "llm", "model": g.modelName, "latency_ms": latency}
}

// lookupQuote runs the extractor restricted to the known-company set, tries
// the live backend, then the mock table.
func (g *Gateway) lookupQuote(ctx context.Context, message string) *cse.Quote {
	sym, ok := symbols.Extract(message)
	if !ok || !symbols.IsKnown(sym) {
		return nil
	}
	sym = strings.ToUpper(sym)

	if g.market != nil {
		if q, found := g.market.GetQuote(ctx, sym); found {
			return &q
		}
	}
	if q, found := mockStocks[sym]; found {
		return &q
	}
	return nil
}

// augmentMessage appends the structured quote context so the model can quote
// concrete figures.
func augmentMessage(message string, quote *cse.Quote) string {
	if quote == nil {
		return message
	}
	return fmt.Sprintf(
		"%s\n\n[Market data context: symbol=%s, name=%s, price=%.2f, currency=%s, change=%.2f, changePercent=%.2f, open=%.2f, high=%.2f, low=%.2f, lastUpdated=%s]",
		message,
		quote.Symbol, quote.Name, quote.Price, quote.Currency,
		quote.Change, quote.ChangePercent, quote.Open, quote.High, quote.Low,
		quote.LastUpdated,
	)
}

func fallbackText(quote *cse.Quote) string {
	if quote != nil {
		return fmt.Sprintf("I can certainly help you with that. Here is the latest data I have for %s.", quote.Name)
	}
	return "I can certainly help you with that. However, I need a valid API key to generate a real AI response. Please configure your environment."
}

func logLLMError(err error) {
	apiErr := &openai.APIError{}
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		log.Printf("assistant api error: status=%d message=%s", apiErr.HTTPStatusCode, msg)
		return
	}
	log.Printf("assistant error: %v", err)
}
