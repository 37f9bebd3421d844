package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"haptic/agent/internal/api"
	"haptic/agent/internal/config"
	"haptic/agent/internal/device"
	"haptic/agent/internal/llm"
	"haptic/agent/internal/loop"
	"haptic/agent/internal/orchestrator"
	"haptic/agent/internal/pattern"
	"haptic/agent/internal/session"
	"haptic/agent/internal/settings"
	"haptic/agent/internal/store"
	"haptic/agent/internal/tts"
	"haptic/agent/internal/uiws"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	sets, err := settings.Load(cfg.Settings.FilePath)
	if err != nil {
		log.Fatalf("settings: %v", err)
	}
	saved := sets.Get()

	handyKey := cfg.Handy.Key
	if handyKey == "" {
		handyKey = saved.HandyKey
	}
	voiceID := cfg.Eleven.VoiceID
	if voiceID == "" {
		voiceID = saved.VoiceID
	}

	st := store.New()
	sess := session.New()
	dev := device.NewClient(cfg.Handy.BaseURL, handyKey)
	dev.SetCalibration(saved.Calibration)
	chat := llm.NewClient(cfg.LLM.URL, cfg.LLM.Model, time.Duration(cfg.LLM.TimeoutSec)*time.Second)
	speech := tts.NewClient(cfg.Eleven.APIKey, voiceID)

	gen := pattern.New(pattern.Config{
		MilkingRampTicks: cfg.Pattern.MilkingRampTicks,
		EdgeBuildTicks:   cfg.Pattern.EdgeBuildTicks,
		EdgeTeaseTicks:   cfg.Pattern.EdgeTeaseTicks,
		EdgeHoldTicks:    cfg.Pattern.EdgeHoldTicks,
		EdgeDipTicks:     cfg.Pattern.EdgeDipTicks,
	})
	disp := loop.NewDispatcher(sess, gen, dev, cfg.Loop.TickMs, cfg.Loop.SendTimeoutMs)

	reg := uiws.NewRegistry()
	orch := orchestrator.New(sess, disp, st, chat, speech, reg, dev, saved.Persona)

	wss := uiws.NewServer(cfg.UI.TokenSecret, cfg.UI.TokenSkewSecs, sess.ID, st, reg)
	h := api.NewHandlers(cfg, orch, st, speech, sets, dev, sess)
	router := api.NewRouter(h, wss.HandleUIWS)

	loopCtx, loopCancel := context.WithCancel(context.Background())
	go disp.Run(loopCtx)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Printf("shutdown signal received; stopping server...")
		loopCancel()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		disp.Shutdown(sctx)
		_ = srv.Shutdown(sctx)
	}()

	log.Printf("server starting on %s session=%s", addr, sess.ID())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("server error:", err)
		os.Exit(1)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
