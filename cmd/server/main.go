package main

import (
	"fmt"
	"log"
	"time"

	"cse-market-assistant/internal/api"
	"cse-market-assistant/internal/assistant"
	"cse-market-assistant/internal/config"
	"cse-market-assistant/internal/conversation"
	"cse-market-assistant/internal/cse"
	"cse-market-assistant/internal/store"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load("configs/app.yaml")
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	h := server.Default(server.WithHostPorts(addr))

	st, err := store.Open(cfg.Store.Sqlite.Path)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("store close error: %v", err)
		}
	}()

	persisted, err := st.LoadConversation(store.DefaultSlot)
	if err != nil {
		log.Printf("load conversation error: %v", err)
	}
	history := conversation.NewHistory(persisted)
	log.Printf("conversation loaded: %d messages", history.Len())

	mkt := cse.NewClient(
		cfg.Market.BaseURL,
		time.Duration(cfg.Market.TimeoutMs)*time.Millisecond,
		nil,
	)

	gw := assistant.New(cfg.Assistant, mkt)

	api.RegisterRoutes(h, gw, mkt, st, history)

	log.Printf("server starting on %s (log.level=%s)", addr, cfg.Log.Level)
	if err := h.Run(); err != nil {
		log.Fatalf("server run error: %v", err)
	}
}
