package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"cse-market-assistant/internal/assistant"
	"cse-market-assistant/internal/conversation"
	"cse-market-assistant/internal/cse"
	"cse-market-assistant/internal/store"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
)

type ChatRequest struct {
	Message string `json:"message"`
}

// chatState serializes access to the shared conversation log; hertz handlers
// run concurrently even though each conversation is a single logical writer.
type chatState struct {
	mu      sync.Mutex
	history *conversation.History
}

func RegisterRoutes(h *server.Hertz, gw *assistant.Gateway, mkt *cse.Client, st *store.Store, hist *conversation.History) {
	chat := &chatState{history: hist}

	h.GET("/healthz", func(_ context.Context, c *app.RequestContext) {
		c.JSON(200, map[string]bool{"ok": true})
	})

	h.POST("/api/v1/chat", func(ctx context.Context, c *app.RequestContext) {
		if gw == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "assistant not configured",
			})
			return
		}

		var req ChatRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "invalid json body",
			})
			return
		}
		text := strings.TrimSpace(req.Message)
		if text == "" {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "message is required",
			})
			return
		}

		chat.mu.Lock()
		priorTurns := chat.history.APITurns()
		chat.mu.Unlock()

		reply := gw.Respond(ctx, text, priorTurns)

		userMsg := conversation.NewMessage(conversation.RoleUser, text)
		aiMsg := conversation.NewMessage(conversation.RoleAssistant, reply.Text)
		aiMsg.Quote = reply.Quote
		aiMsg.IsError = reply.IsError

		chat.mu.Lock()
		chat.history.Add(userMsg)
		chat.history.Add(aiMsg)
		messages := chat.history.Messages()
		chat.mu.Unlock()

		if err := st.SaveConversation(store.DefaultSlot, messages); err != nil {
			log.Printf("save conversation error: %v", err)
		}
		if reply.Quote != nil {
			recordSnapshot(st, *reply.Quote)
		}

		c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"reply":   aiMsg,
			"quote":   reply.Quote,
			"history": messages,
		})
	})

	h.POST("/api/v1/chat/clear", func(_ context.Context, c *app.RequestContext) {
		chat.mu.Lock()
		chat.history.Clear()
		chat.mu.Unlock()

		if err := st.ClearConversation(store.DefaultSlot); err != nil {
			log.Printf("clear conversation error: %v", err)
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{"ok": true})
	})

	h.GET("/api/v1/history", func(_ context.Context, c *app.RequestContext) {
		chat.mu.Lock()
		messages := chat.history.Messages()
		chat.mu.Unlock()

		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"items": messages,
		})
	})

	h.GET("/api/v1/quote", func(ctx context.Context, c *app.RequestContext) {
		if mkt == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "market client not configured",
			})
			return
		}
		symbol := strings.TrimSpace(string(c.Query("symbol")))
		if symbol == "" {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "symbol is required",
			})
			return
		}
		q, apiErr := mkt.LookupQuote(ctx, symbol)
		if apiErr != nil {
			status := http.StatusNotFound
			if apiErr.Kind != cse.KindNotFound {
				status = http.StatusBadGateway
			}
			c.JSON(status, map[string]any{
				"ok":          false,
				"error":       cse.UserMessage(apiErr.Kind),
				"kind":        apiErr.Kind.String(),
				"recoverable": cse.Recoverable(apiErr.Kind),
			})
			return
		}
		recordSnapshot(st, q)
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"quote": q,
		})
	})

	h.GET("/api/v1/search", func(ctx context.Context, c *app.RequestContext) {
		if mkt == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "market client not configured",
			})
			return
		}
		query := strings.TrimSpace(string(c.Query("q")))
		if query == "" {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "q is required",
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"items": mkt.Search(ctx, query),
		})
	})

	h.GET("/api/v1/movers", func(ctx context.Context, c *app.RequestContext) {
		if mkt == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "market client not configured",
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"items": mkt.TopMovers(ctx),
		})
	})

	h.GET("/api/v1/snapshots", func(_ context.Context, c *app.RequestContext) {
		if st == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "store not configured",
			})
			return
		}
		symbol := strings.TrimSpace(string(c.Query("symbol")))
		if symbol == "" {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "symbol is required",
			})
			return
		}
		limit, err := parseLimit(c.Query("limit"))
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		offset, err := parseOffset(c.Query("offset"))
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		items, err := st.QueryQuoteSnapshots(strings.ToUpper(symbol), limit, offset)
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"items": items,
		})
	})

	h.POST("/api/v1/assistant/ping", func(ctx context.Context, c *app.RequestContext) {
		if gw == nil {
			c.JSON(http.StatusOK, map[string]any{
				"ok":     true,
				"mode":   "fallback",
				"reason": "assistant not configured",
			})
			return
		}
		c.JSON(http.StatusOK, gw.Ping(ctx))
	})
}

// recordSnapshot keeps a row per quote served, for the snapshots endpoint.
func recordSnapshot(st *store.Store, q cse.Quote) {
	raw, _ := json.Marshal(q)
	if err := st.InsertQuoteSnapshot(store.QuoteSnapshot{
		TS:        time.Now().Unix(),
		Symbol:    q.Symbol,
		Name:      q.Name,
		Price:     q.Price,
		ChangePct: q.ChangePercent,
		Raw:       string(raw),
	}); err != nil {
		log.Printf("insert quote snapshot error: %v", err)
	}
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 200, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if v > 1000 {
		return 1000, nil
	}
	return v, nil
}

func parseOffset(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid offset")
	}
	return v, nil
}
