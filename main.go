package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/Olegcreabuilder/createshorts-backend/accounts"
	"github.com/Olegcreabuilder/createshorts-backend/analysis"
	"github.com/Olegcreabuilder/createshorts-backend/archive"
	"github.com/Olegcreabuilder/createshorts-backend/auth"
	"github.com/Olegcreabuilder/createshorts-backend/billing"
	"github.com/Olegcreabuilder/createshorts-backend/db"
	"github.com/Olegcreabuilder/createshorts-backend/httputil"
	"github.com/Olegcreabuilder/createshorts-backend/mail"
	"github.com/Olegcreabuilder/createshorts-backend/notify"
	"github.com/Olegcreabuilder/createshorts-backend/ratelimit"
	"github.com/Olegcreabuilder/createshorts-backend/tiktok"
	"github.com/Olegcreabuilder/createshorts-backend/videos"
)

type Config struct {
	Port        string
	DatabaseURL string // Postgres DSN; empty means SQLite
	DBPath      string

	JWTSecret     string
	WebhookSecret string

	TikWMBaseURL string
	RapidAPIKey  string
	RapidAPIHost string

	OpenAIKey string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPTLS      bool

	MinioEndpoint string
	MinioAccess   string
	MinioSecret   string
	MinioBucket   string
	MinioSSL      bool
}

func loadConfig() Config {
	smtpPort, _ := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	return Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBPath:      getEnv("DB_PATH", "/data/createshorts.db"),

		JWTSecret:     getEnv("SUPABASE_JWT_SECRET", "supersecretkey"),
		WebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),

		TikWMBaseURL: getEnv("TIKWM_BASE_URL", ""),
		RapidAPIKey:  getEnv("RAPIDAPI_KEY", ""),
		RapidAPIHost: getEnv("RAPIDAPI_HOST", ""),

		OpenAIKey: getEnv("OPENAI_API_KEY", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     smtpPort,
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@createshorts.fr"),
		SMTPTLS:      getEnv("SMTP_TLS", "true") == "true",

		MinioEndpoint: getEnv("MINIO_ENDPOINT", ""),
		MinioAccess:   getEnv("MINIO_ACCESS_KEY", "createshorts"),
		MinioSecret:   getEnv("MINIO_SECRET_KEY", "changeme123"),
		MinioBucket:   getEnv("MINIO_BUCKET", "reports"),
		MinioSSL:      getEnv("MINIO_USE_SSL", "false") == "true",
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func openDatabase(cfg Config) (*db.CompatDB, error) {
	if cfg.DatabaseURL != "" {
		raw, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		raw.SetMaxOpenConns(10)
		raw.SetMaxIdleConns(5)
		if err := db.RunMigrations(raw, db.DialectPostgres); err != nil {
			raw.Close()
			return nil, err
		}
		return db.New(raw, db.DialectPostgres), nil
	}

	raw, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, err
	}
	// Single connection: prevents concurrent write conflicts
	raw.SetMaxOpenConns(1)
	raw.SetMaxIdleConns(1)
	raw.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := raw.Exec(pragma); err != nil {
			raw.Close()
			return nil, err
		}
	}

	if err := db.RunMigrations(raw, db.DialectSQLite); err != nil {
		raw.Close()
		return nil, err
	}
	return db.New(raw, db.DialectSQLite), nil
}

func buildFetcher(cfg Config) *tiktok.Fetcher {
	sources := []tiktok.Source{tiktok.NewTikWM(cfg.TikWMBaseURL, nil)}
	if cfg.RapidAPIKey != "" {
		sources = append(sources, tiktok.NewRapidAPI(cfg.RapidAPIHost, cfg.RapidAPIKey, nil))
	}
	return tiktok.NewFetcher(sources...)
}

func main() {
	cfg := loadConfig()

	database, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()
	log.Printf("database ready (%s)", database.Dialect)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Report archive is optional; the API runs fine without object storage.
	var reports *archive.Store
	if cfg.MinioEndpoint != "" {
		reports, err = archive.New(ctx, cfg.MinioEndpoint, cfg.MinioAccess, cfg.MinioSecret, cfg.MinioBucket, cfg.MinioSSL)
		if err != nil {
			log.Fatalf("failed to connect to minio: %v", err)
		}
		log.Printf("report archive ready (bucket %s)", cfg.MinioBucket)
	}

	fetcher := buildFetcher(cfg)
	ai := analysis.NewClient(cfg.OpenAIKey)
	if cfg.OpenAIKey == "" {
		log.Println("OPENAI_API_KEY not set; analyses will use default responses")
	}

	if cfg.SMTPHost != "" {
		mailer := &mail.SMTPMailer{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			UseTLS:   cfg.SMTPTLS,
		}
		sweeper := &notify.Sweeper{DB: database, Mailer: mailer}
		go sweeper.Run(ctx)
	} else {
		log.Println("SMTP_HOST not set; welcome emails disabled")
	}

	verifier := &auth.Verifier{Secret: cfg.JWTSecret}
	accountsH := &accounts.Handler{DB: database, Fetcher: fetcher, AI: ai, Archive: reports}
	videosH := &videos.Handler{DB: database, Fetcher: fetcher, AI: ai}
	billingH := &billing.Handler{DB: database, Secret: cfg.WebhookSecret}

	limiter := ratelimit.New(60, time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, 200, map[string]string{
			"status":    "ok",
			"service":   "createshorts-api",
			"timestamp": db.NowUTC(),
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(limiter))

		r.Get("/api/test-tiktok/{username}", accountsH.HandleTestLookup)
		r.Post("/api/webhooks/payment", billingH.HandleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(verifier.Middleware)
			r.Post("/api/connect-tiktok", accountsH.HandleConnect)
			r.Get("/api/account", accountsH.HandleGetAccount)
			r.Get("/api/user-videos", videosH.HandleListVideos)
			r.Post("/api/analyze-video", videosH.HandleAnalyzeVideo)
		})
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		log.Printf("CreateShorts API listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	log.Println("server shut down")
}
