package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gridironhq/companion/internal/advisor"
	"github.com/gridironhq/companion/internal/clickhouse"
	"github.com/gridironhq/companion/internal/directory"
	"github.com/gridironhq/companion/internal/handlers"
	"github.com/gridironhq/companion/internal/logger"
	"github.com/gridironhq/companion/internal/mocks"
	"github.com/gridironhq/companion/internal/pubsub"
	"github.com/gridironhq/companion/internal/sheets"
	"github.com/gridironhq/companion/internal/store"
)

var (
	kvStore   store.Store
	dirClient handlers.PlayerDirectory
	chClient  clickhouse.ADPSource
)

// adpCache is the surface the analytics sync writes into; both the real
// catalog client and the mock implement it
type adpCache interface {
	SetADP(map[string]float64)
}

func main() {
	// .env is optional; real environments set variables directly
	godotenv.Load()

	logger.Init()
	logger.Info("Starting fantasy companion service")

	environment := os.Getenv("ENVIRONMENT")
	development := environment == "" || environment == "development"

	// Key-value store backing the cheat sheets
	storeDriver := os.Getenv("STORE_DRIVER")
	if storeDriver == "" {
		storeDriver = "memory"
	}

	var err error
	switch storeDriver {
	case "memory":
		kvStore = store.NewMemoryStore()
		logger.Info("Using in-memory store")
	case "sqlite":
		sqliteFile := os.Getenv("SQLITE_FILE")
		if sqliteFile == "" {
			sqliteFile = "dev.sqlite"
		}
		kvStore, err = store.NewSQLiteStore(sqliteFile)
		if err != nil {
			logger.Error("Failed to initialize SQLite", "error", err)
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		logger.Info("Connected to SQLite store", "file", sqliteFile)
	case "postgres":
		connString := os.Getenv("DATABASE_URL")
		if connString == "" {
			if !development {
				logger.Error("DATABASE_URL is required for the postgres driver")
				log.Fatal("DATABASE_URL is required for the postgres driver")
			}
			mock, err := mocks.NewMockPostgresStore("dev.sqlite")
			if err != nil {
				log.Fatalf("Failed to initialize mock Postgres: %v", err)
			}
			kvStore = mock
			break
		}
		kvStore, err = store.NewPostgresStore(connString)
		if err != nil {
			logger.Error("Failed to initialize Postgres", "error", err)
			log.Fatalf("Failed to initialize Postgres: %v", err)
		}
		logger.Info("Connected to Postgres store")
	default:
		logger.Error("Unknown STORE_DRIVER", "driver", storeDriver)
		log.Fatalf("Unknown STORE_DRIVER: %s (valid: memory, sqlite, postgres)", storeDriver)
	}
	defer kvStore.Close()

	// Event bus: embedded NATS in development, real NATS JetStream otherwise.
	// BUS_DRIVER=mock forces the in-memory bus.
	natsSubject := os.Getenv("NATS_SUBJECT")
	if natsSubject == "" {
		natsSubject = "sheets.events"
	}

	var bus pubsub.Upstream
	switch {
	case os.Getenv("BUS_DRIVER") == "mock":
		mock := pubsub.NewMockNATSPubSub(natsSubject)
		defer mock.Close()
		bus = mock
	case development:
		logger.Info("Starting embedded NATS server for local development")
		embedded, err := pubsub.NewEmbeddedNATSPubSub(pubsub.EmbeddedNATSOptions{
			Port:    0,
			Subject: natsSubject,
		})
		if err != nil {
			logger.Warn("Embedded NATS failed to start, falling back to the in-memory bus", "error", err)
			mock := pubsub.NewMockNATSPubSub(natsSubject)
			defer mock.Close()
			bus = mock
			break
		}
		defer embedded.Close()
		bus = embedded
		logger.Info("Embedded NATS server ready", "url", embedded.GetServerURL())
	default:
		natsURL := os.Getenv("NATS_URL")
		if natsURL == "" {
			natsURL = "nats://localhost:4222"
		}
		real, err := pubsub.NewNATSPubSub(natsURL, natsSubject)
		if err != nil {
			logger.Error("Failed to initialize NATS", "error", err)
			log.Fatalf("Failed to initialize NATS: %v", err)
		}
		defer real.Close()
		bus = real
		logger.Info("Connected to NATS", "url", natsURL)
	}

	ps := pubsub.NewWithUpstream(bus)

	// Player catalog: real client when a base URL is configured, mock otherwise
	catalogBaseURL := os.Getenv("CATALOG_BASE_URL")
	var adpSink adpCache
	if catalogBaseURL != "" {
		c := directory.NewClient(directory.Config{
			BaseURL:      catalogBaseURL,
			ClientID:     os.Getenv("CATALOG_CLIENT_ID"),
			ClientSecret: os.Getenv("CATALOG_CLIENT_SECRET"),
			TokenURL:     os.Getenv("CATALOG_TOKEN_URL"),
		})
		dirClient, adpSink = c, c
		logger.Info("Using player catalog", "url", catalogBaseURL)
	} else {
		m := mocks.NewMockDirectory()
		dirClient, adpSink = m, m
	}

	// Recommendation service
	var adv handlers.Advisor
	advisorBaseURL := os.Getenv("ADVISOR_BASE_URL")
	if advisorBaseURL != "" {
		adv = advisor.NewClient(advisorBaseURL)
		logger.Info("Using recommendation service", "url", advisorBaseURL)
	} else {
		adv = mocks.NewMockAdvisor()
	}

	// Draft analytics: mock ClickHouse in development, real otherwise
	if development {
		chClient = mocks.NewMockClickHouseClient()
	} else {
		chAddr := os.Getenv("CLICKHOUSE_ADDR")
		if chAddr == "" {
			chAddr = "localhost:9000"
		}
		chDB := os.Getenv("CLICKHOUSE_DB")
		if chDB == "" {
			chDB = "default"
		}
		chUser := os.Getenv("CLICKHOUSE_USER")
		if chUser == "" {
			chUser = "default"
		}
		chClient, err = clickhouse.NewClient(chAddr, chDB, chUser, os.Getenv("CLICKHOUSE_PASSWORD"))
		if err != nil {
			logger.Error("Failed to initialize ClickHouse", "error", err, "address", chAddr)
			log.Fatalf("Failed to initialize ClickHouse: %v", err)
		}
		logger.Info("Connected to ClickHouse", "address", chAddr, "database", chDB)
	}
	defer chClient.Close()

	// Periodic ADP sync into the catalog client's cache; /api/players serves
	// the synced values
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		syncADP(adpSink, ps)
		for range ticker.C {
			syncADP(adpSink, ps)
		}
	}()

	adapter := sheets.NewAdapter(kvStore)
	api := handlers.NewAPIHandlers(adapter, dirClient, adv, ps)

	mux := http.NewServeMux()

	// Cheat sheets API
	mux.HandleFunc("/api/sheets", api.ListSheets)
	mux.HandleFunc("/api/sheets/create", api.CreateSheet)
	mux.HandleFunc("/api/sheets/import", api.ImportSheet)
	mux.HandleFunc("/api/sheets/delete", api.DeleteSheet)
	mux.HandleFunc("/api/sheet", api.GetSheet)

	// Editor API
	mux.HandleFunc("/api/editor/open", api.OpenEditor)
	mux.HandleFunc("/api/editor/close", api.CloseEditor)
	mux.HandleFunc("/api/editor/edit", api.EditSheet)

	// Live draft API
	mux.HandleFunc("/api/draft/start", api.StartDraft)
	mux.HandleFunc("/api/draft/toggle", api.ToggleDrafted)
	mux.HandleFunc("/api/draft/board", api.DraftBoard)

	// Players API
	mux.HandleFunc("/api/players", api.ListPlayers)
	mux.HandleFunc("/api/players/sync", api.SyncCatalog)

	// Recommendation API
	mux.HandleFunc("/api/compare", api.ComparePlayers)
	mux.HandleFunc("/api/keeper-recs", api.KeeperRecommendations)

	// SSE for realtime updates
	mux.HandleFunc("/api/events", api.EventsSSE)

	// Health check endpoints
	mux.HandleFunc("/api/health", healthHandler)
	mux.HandleFunc("/healthz", livenessHandler)
	mux.HandleFunc("/readyz", readinessHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	server := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: mux,
	}

	go func() {
		logger.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			log.Fatal(err)
		}
	}()

	// On shutdown, flush open editors before the store goes away
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	api.CloseAll(ctx)
	server.Shutdown(ctx)
}

// syncADP pulls fresh average-draft-position aggregates into the catalog
// client's cache and announces the refresh
func syncADP(dir adpCache, ps *pubsub.PubSub) {
	logger.Info("Syncing ADP from analytics")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	adp, err := chClient.GetAllADP(ctx)
	if err != nil {
		logger.Error("Failed to sync ADP", "error", err)
		return
	}

	dir.SetADP(adp)
	ps.Publish(pubsub.ADPUpdated(len(adp)))
	logger.Info("ADP synced", "players", len(adp))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if kvStore != nil {
		probe := "health-probe"
		err := kvStore.Set(r.Context(), probe, []byte(`{}`))
		if err == nil {
			err = kvStore.Delete(r.Context(), probe)
		}
		if err != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			checks["store"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
		} else {
			checks["store"] = map[string]interface{}{
				"status": "healthy",
			}
		}
	} else {
		checks["store"] = map[string]interface{}{
			"status": "not_configured",
		}
	}

	if os.Getenv("ENVIRONMENT") == "production" && chClient != nil {
		if _, err := chClient.GetAllADP(r.Context()); err != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			checks["clickhouse"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
		} else {
			checks["clickhouse"] = map[string]interface{}{
				"status": "healthy",
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

// livenessHandler answers Kubernetes liveness probes without touching
// dependencies
func livenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().Unix(),
	})
}

// readinessHandler answers Kubernetes readiness probes; the store is the
// critical dependency
func readinessHandler(w http.ResponseWriter, r *http.Request) {
	if kvStore != nil {
		if _, err := kvStore.Get(r.Context(), "cheatSheets"); err != nil && err != store.ErrNotFound {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":    "not_ready",
				"reason":    "store_unavailable",
				"timestamp": time.Now().Unix(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().Unix(),
	})
}
