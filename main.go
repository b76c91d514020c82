package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iot-anomaly-engine/analytics"
	"iot-anomaly-engine/cache"
	"iot-anomaly-engine/config"
	"iot-anomaly-engine/handlers"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Redis is the read-side cache and notification channel; an empty addr
	// runs the engine without it.
	var redisClient *cache.RedisClient
	if cfg.Redis.Addr != "" {
		redisClient, err = cache.NewRedisClient(cfg.Redis.Addr)
		if err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %v", cfg.Redis.Addr, err)
		}
		defer redisClient.Close()
		log.Printf("Connected to Redis at %s", cfg.Redis.Addr)
	} else {
		log.Println("Redis disabled, running without cache")
	}

	engineHandler := handlers.NewEngineHandler(analytics.Config{
		MaxHistory:   cfg.Engine.MaxHistory,
		MaxAnomalies: cfg.Engine.MaxAnomalies,
		Workers:      cfg.Engine.Workers,
		QueueSize:    cfg.Engine.QueueSize,
	}, redisClient, cfg.Redis.Channel)
	defer engineHandler.Engine().Close()

	r := mux.NewRouter()

	r.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	r.HandleFunc("/readings", engineHandler.HandleReading).Methods("POST")
	r.HandleFunc("/readings/batch", engineHandler.HandleBatch).Methods("POST")
	r.HandleFunc("/learn", engineHandler.HandleLearn).Methods("POST")
	r.HandleFunc("/detect", engineHandler.HandleDetect).Methods("POST")
	r.HandleFunc("/anomalies", engineHandler.HandleAnomalies).Methods("GET")
	r.HandleFunc("/anomalies", engineHandler.HandleClear).Methods("DELETE")
	r.HandleFunc("/anomalies/summary", engineHandler.HandleSummary).Methods("GET")
	r.HandleFunc("/profile/{entity_id}", engineHandler.HandleProfile).Methods("GET")
	r.HandleFunc("/correlations", engineHandler.HandleCorrelations).Methods("GET")
	r.HandleFunc("/stats", engineHandler.HandleStats).Methods("GET")
	r.HandleFunc("/ws/anomalies", engineHandler.HandleAnomalyStream)

	r.Path("/metrics").Handler(promhttp.Handler())

	// Periodic learn -> correlate -> detect pass.
	scheduler := analytics.NewScheduler(engineHandler.Engine(), cfg.Engine.DetectInterval)
	if err := scheduler.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:           cfg.Server.Addr,
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	go func() {
		log.Printf("Server starting on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
