package assistant

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cse-market-assistant/internal/conversation"
	"cse-market-assistant/internal/cse"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMarket serves a fixed quote set, or nothing at all.
type fakeMarket struct {
	quotes map[string]cse.Quote
	calls  int
}

func (f *fakeMarket) GetQuote(_ context.Context, symbol string) (cse.Quote, bool) {
	f.calls++
	q, ok := f.quotes[symbol]
	return q, ok
}

// fakeModel records the messages it was given and replies with fixed content.
type fakeModel struct {
	reply string
	err   error
	seen  []*schema.Message
}

func (f *fakeModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.seen = in
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func Test_Respond_NoCredentialWithKnownSymbol(t *testing.T) {
	g := &Gateway{market: &fakeMarket{}}

	reply := g.Respond(context.Background(), "What's JKH trading at?", nil)

	assert.True(t, strings.HasPrefix(reply.Text, "I can certainly help you with that."))
	require.NotNil(t, reply.Quote)
	assert.Equal(t, "JKH", reply.Quote.Symbol)
	assert.Equal(t, 150.50, reply.Quote.Price)
}

func Test_Respond_NoCredentialNoSymbol(t *testing.T) {
	g := &Gateway{market: &fakeMarket{}}

	reply := g.Respond(context.Background(), "hello", nil)

	assert.True(t, strings.HasPrefix(reply.Text, "I can certainly help you with that."))
	assert.Nil(t, reply.Quote)
}

func Test_Respond_LiveQuotePreferredOverMock(t *testing.T) {
	live := cse.Quote{Symbol: "JKH", Name: "JOHN KEELLS HOLDINGS PLC", Price: 160.00, Currency: "LKR"}
	g := &Gateway{market: &fakeMarket{quotes: map[string]cse.Quote{"JKH": live}}}

	reply := g.Respond(context.Background(), "tell me about John Keells", nil)

	require.NotNil(t, reply.Quote)
	assert.Equal(t, 160.00, reply.Quote.Price)
}

func Test_Respond_MockFallbackWhenBackendHasNothing(t *testing.T) {
	// A 503 from the backend surfaces here as a not-found quote.
	g := &Gateway{market: &fakeMarket{}}

	reply := g.Respond(context.Background(), "DIAL price?", nil)

	require.NotNil(t, reply.Quote)
	assert.Equal(t, "DIAL", reply.Quote.Symbol)
	assert.Equal(t, 9.20, reply.Quote.Price)
}

func Test_Respond_BackendOutageFallsBackToMock(t *testing.T) {
	// End to end through a real market client: the backend answers 503, the
	// live lookup comes back absent, and the mock quote fills in.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := cse.NewClient(srv.URL, time.Second, nil)
	g := &Gateway{market: client}

	reply := g.Respond(context.Background(), "What's JKH trading at?", nil)

	require.NotNil(t, reply.Quote)
	assert.Equal(t, "JKH", reply.Quote.Symbol)
	assert.Equal(t, 150.50, reply.Quote.Price)
	assert.True(t, strings.HasPrefix(reply.Text, "I can certainly help you with that."))
}

func Test_Respond_UnknownSymbolIsNotPursued(t *testing.T) {
	market := &fakeMarket{}
	g := &Gateway{market: market}

	reply := g.Respond(context.Background(), "Any news on LOLC?", nil)

	assert.Nil(t, reply.Quote)
	assert.Zero(t, market.calls, "speculative symbols stay outside the known-company set")
}

func Test_Respond_KnownSymbolWithoutMockEntry(t *testing.T) {
	g := &Gateway{market: &fakeMarket{}}

	reply := g.Respond(context.Background(), "How is HNB doing?", nil)

	assert.Nil(t, reply.Quote, "HNB is known but has no demo fallback entry")
}

func Test_Respond_BuildsAugmentedPrompt(t *testing.T) {
	m := &fakeModel{reply: "**JKH** closed higher today."}
	g := &Gateway{model: m, market: &fakeMarket{}}

	history := []conversation.Turn{
		{Role: "user", Text: "hi"},
		{Role: "model", Text: "hello, how can I help?"},
	}
	reply := g.Respond(context.Background(), "What's JKH trading at?", history)

	assert.Equal(t, "**JKH** closed higher today.", reply.Text)
	require.NotNil(t, reply.Quote)

	require.Len(t, m.seen, 4)
	assert.Equal(t, schema.System, m.seen[0].Role)
	assert.Equal(t, schema.User, m.seen[1].Role)
	assert.Equal(t, schema.Assistant, m.seen[2].Role)
	assert.Equal(t, schema.User, m.seen[3].Role)

	last := m.seen[3].Content
	assert.True(t, strings.HasPrefix(last, "What's JKH trading at?"))
	assert.Contains(t, last, "symbol=JKH")
	assert.Contains(t, last, "price=150.50")
	assert.Contains(t, last, "currency=LKR")
	assert.Contains(t, last, "lastUpdated=2 mins ago")
}

func Test_Respond_NoQuoteLeavesMessageUntouched(t *testing.T) {
	m := &fakeModel{reply: "Good morning!"}
	g := &Gateway{model: m, market: &fakeMarket{}}

	reply := g.Respond(context.Background(), "hello", nil)

	assert.Equal(t, "Good morning!", reply.Text)
	assert.Nil(t, reply.Quote)
	assert.Equal(t, "hello", m.seen[len(m.seen)-1].Content)
}

func Test_Respond_LLMFailureKeepsQuote(t *testing.T) {
	m := &fakeModel{err: errors.New("backend down")}
	g := &Gateway{model: m, market: &fakeMarket{}}

	reply := g.Respond(context.Background(), "COMB update please", nil)

	assert.Equal(t, llmErrorText, reply.Text)
	assert.True(t, reply.IsError)
	require.NotNil(t, reply.Quote)
	assert.Equal(t, "COMB", reply.Quote.Symbol)
}

func Test_Ping_FallbackWhenDisabled(t *testing.T) {
	g := &Gateway{disabledReason: "api_key or model missing"}

	resp := g.Ping(context.Background())
	assert.Equal(t, "fallback", resp["mode"])
	assert.Equal(t, "api_key or model missing", resp["reason"])
}
