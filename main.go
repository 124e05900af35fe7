package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/octree/jurnal-convert/internal"
	"github.com/spf13/pflag"
	_ "go.uber.org/automaxprocs"
)

const (
	ShutdownTimeout = 30 * time.Second
)

func main() {
	flags := pflag.NewFlagSet("jurnal-convert", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", os.Getenv("JURNAL_CONFIG"), "path to a YAML config file")
	envFile := flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	port := flags.StringP("port", "p", "", "listen port (overrides config)")
	appRoot := flags.String("app-root", "", "working directory of the conversion script (overrides config)")
	script := flags.String("script", "", "conversion script path (overrides config)")
	timeoutSecs := flags.Int("timeout", 0, "conversion timeout in seconds (overrides config)")
	_ = flags.Parse(os.Args[1:])

	// Setup
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: Failed to load %s: %v", *envFile, err)
	}

	cfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if flags.Changed("port") {
		cfg.Port = *port
	}
	if flags.Changed("app-root") {
		cfg.AppRoot = *appRoot
	}
	if flags.Changed("script") {
		cfg.ScriptPath = *script
	}
	if flags.Changed("timeout") {
		cfg.ConversionTimeoutSeconds = *timeoutSecs
	}
	if err := cfg.Normalize(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	for _, dir := range []string{cfg.UploadDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("Warning: Failed to create directory %s: %v", dir, err)
		}
	}

	handlers := internal.NewHandlers(cfg)
	router := setupRouter(handlers, cfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.ResponseDeadline(),
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Journal conversion server starting on port %s", cfg.Port)
		log.Printf("Conversion script: %s (timeout %s)", cfg.ScriptPath, cfg.ConversionTimeout())
		log.Printf("Max concurrent conversions: %d", cfg.MaxConcurrent)
		log.Printf("Health check: http://localhost:%s/health", cfg.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func setupRouter(handlers *internal.Handlers, cfg *internal.Config) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.MaxMultipartMemory = 8 << 20

	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"POST", "GET", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "Authorization"},
		ExposeHeaders:   []string{"X-Convert-Request-Id", "X-Convert-Duration-Ms"},
	}))

	handlers.Register(router)
	router.Static("/"+cfg.DownloadPrefix, cfg.OutputDir)

	return router
}
