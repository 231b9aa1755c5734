// cmd/server runs the voice-dialogue orchestrator as a websocket
// server: one Session per accepted connection, wired to the configured
// ASR/LLM/TTS providers and the shared TTS pool.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxloop-ai/voxloop-orchestrator/pkg/audio"
	"github.com/voxloop-ai/voxloop-orchestrator/pkg/orchestrator"
	"github.com/voxloop-ai/voxloop-orchestrator/pkg/providers/intent"
	llmProvider "github.com/voxloop-ai/voxloop-orchestrator/pkg/providers/llm"
	"github.com/voxloop-ai/voxloop-orchestrator/pkg/providers/memory"
	"github.com/voxloop-ai/voxloop-orchestrator/pkg/providers/role"
	sttProvider "github.com/voxloop-ai/voxloop-orchestrator/pkg/providers/stt"
	"github.com/voxloop-ai/voxloop-orchestrator/pkg/providers/voiceprint"
	"github.com/voxloop-ai/voxloop-orchestrator/pkg/transport"
	"github.com/voxloop-ai/voxloop-orchestrator/pkg/ttspool"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("note: no .env file found, using process environment")
	}

	logger := orchestrator.NewSlogLogger(nil)
	metrics := orchestrator.NewMetrics(prometheus.DefaultRegisterer)

	asr := buildASR(envOr("STT_PROVIDER", "groq"))
	llm := buildLLM(envOr("LLM_PROVIDER", "groq"))

	pool := buildTTSPool(logger)
	poolCtx, poolCancel := context.WithCancel(context.Background())
	defer poolCancel()
	go pool.RunIdleReaper(poolCtx, time.Duration(envInt("TTS_REAP_INTERVAL_SEC", 1))*time.Second)

	dataDir := envOr("DATA_DIR", "data")
	roleProvider, err := role.New(dataDir+"/roles", orchestrator.VoiceF1)
	if err != nil {
		log.Fatalf("role provider: %v", err)
	}
	memoryProvider := memory.New(dataDir+"/memory", 5)
	intentProvider := intent.New(nil, "")
	voiceprintProvider := voiceprint.New(dataDir+"/voiceprints", 0)
	functions := orchestrator.NewDefaultFunctionRegistry()

	cfg := orchestrator.DefaultConfig()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleConn(w, r, cfg, logger, metrics, asr, llm, pool, roleProvider, memoryProvider, intentProvider, voiceprintProvider, functions)
	})

	addr := envOr("LISTEN_ADDR", ":8080")
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("server: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func handleConn(
	w http.ResponseWriter, r *http.Request,
	cfg orchestrator.Config,
	logger orchestrator.Logger,
	metrics *orchestrator.Metrics,
	asr orchestrator.ASR,
	llm orchestrator.LLM,
	pool *ttspool.Pool,
	roleProvider *role.Provider,
	memoryProvider *memory.Provider,
	intentProvider *intent.Provider,
	voiceprintProvider *voiceprint.Provider,
	functions orchestrator.FunctionRegistry,
) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.Warn("server: accept failed", "error", err)
		return
	}

	deviceID := r.Header.Get("X-Device-Id")
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	stream := transport.New(conn)
	decoder, err := audio.NewDecoder(audio.InFrameSamples)
	if err != nil {
		logger.Error("server: build opus decoder failed", "error", err)
		_ = stream.Close()
		return
	}
	vad := orchestrator.NewRMSVAD(cfg.VADThreshold)

	deps := orchestrator.SessionDeps{
		ASR:         asr,
		Voiceprint:  voiceprintProvider,
		LLM:         llm,
		Memory:      memoryProvider,
		Intent:      intentProvider,
		Role:        roleProvider,
		Functions:   functions,
		Pool:        pool,
		VADProvider: vad,
		OpusDecoder: decoder,
		Logger:      logger,
		Metrics:     metrics,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := orchestrator.NewSession(ctx, deviceID, cfg, deps, stream)
	defer session.Close()

	_ = stream.SendControl(orchestrator.ControlMessage{
		Type:      "hello",
		SessionID: session.ID(),
	})

	go session.RunProactiveLoop(ctx, 5*time.Second)

	router := orchestrator.NewFrameRouter(session.HandleText, session.Write)
	if err := stream.Run(ctx, router); err != nil {
		logger.Info("server: connection closed", "session", session.ID(), "error", err)
	}
}

func buildASR(name string) orchestrator.ASR {
	switch name {
	case "openai":
		return sttProvider.NewOpenAISTT(mustEnv("OPENAI_API_KEY"), envOr("OPENAI_STT_MODEL", "whisper-1"))
	case "deepgram":
		return sttProvider.NewDeepgramSTT(mustEnv("DEEPGRAM_API_KEY"))
	case "assemblyai":
		return sttProvider.NewAssemblyAISTT(mustEnv("ASSEMBLYAI_API_KEY"))
	case "groq":
		fallthrough
	default:
		return sttProvider.NewGroqSTT(mustEnv("GROQ_API_KEY"), envOr("GROQ_STT_MODEL", "whisper-large-v3-turbo"))
	}
}

func buildLLM(name string) orchestrator.LLM {
	switch name {
	case "openai":
		return llmProvider.NewOpenAILLM(mustEnv("OPENAI_API_KEY"), envOr("OPENAI_LLM_MODEL", "gpt-4o"))
	case "anthropic":
		return llmProvider.NewAnthropicLLM(mustEnv("ANTHROPIC_API_KEY"), envOr("ANTHROPIC_LLM_MODEL", "claude-3-5-sonnet-20241022"))
	case "google":
		return llmProvider.NewGoogleLLM(mustEnv("GOOGLE_API_KEY"), envOr("GOOGLE_LLM_MODEL", "gemini-1.5-flash"))
	case "groq":
		fallthrough
	default:
		return llmProvider.NewGroqLLM(mustEnv("GROQ_API_KEY"), envOr("GROQ_LLM_MODEL", "llama-3.3-70b-versatile"))
	}
}

func buildTTSPool(logger orchestrator.Logger) *ttspool.Pool {
	cfg := ttspool.Config{
		URL:        mustEnv("TTS_UPSTREAM_URL"),
		AppID:      mustEnv("TTS_APP_ID"),
		Token:      mustEnv("TTS_ACCESS_TOKEN"),
		ResourceID: envOr("TTS_RESOURCE_ID", "volc.service_type.10029"),
	}
	capacity := envInt("TTS_POOL_CAPACITY", 8)
	idleTimeout := time.Duration(envInt("TTS_POOL_IDLE_TIMEOUT_SEC", 3)) * time.Second
	return ttspool.NewPool(cfg, capacity, idleTimeout, logger)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("missing required environment variable %s", key)
	}
	return v
}
