package main

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"kb-api/api"
	"kb-api/state"
	"kb-api/storage"
)

const (
	defaultSessionFile = ".kb-session.json"
	defaultCacheTTL    = time.Hour
)

func main() {
	_ = godotenv.Load()

	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	cardsTableName := os.Getenv("CARDS_TABLE")
	categoriesTableName := os.Getenv("CATEGORIES_TABLE")
	usersTableName := os.Getenv("USERS_TABLE")
	if connStr == "" || cardsTableName == "" || categoriesTableName == "" || usersTableName == "" {
		log.Fatal("missing storage config")
	}
	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		log.Fatal("missing SESSION_SECRET")
	}

	store, err := storage.New(connStr, cardsTableName, categoriesTableName, usersTableName)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var backend state.Backend = store
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		redisOpts, err := redis.ParseURL(redisConn)
		if err != nil {
			parts := strings.Split(redisConn, ",")
			redisOpts = &redis.Options{Addr: parts[0]}
			for _, p := range parts[1:] {
				kv := strings.SplitN(p, "=", 2)
				if len(kv) != 2 {
					continue
				}
				switch strings.ToLower(kv[0]) {
				case "password":
					redisOpts.Password = kv[1]
				case "ssl":
					if strings.ToLower(kv[1]) == "true" {
						redisOpts.TLSConfig = &tls.Config{}
					}
				}
			}
		}
		ttl := defaultCacheTTL
		if v := os.Getenv("CACHE_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid CACHE_TTL: %v", err)
			}
			ttl = d
		}
		backend = storage.NewCache(store, redis.NewClient(redisOpts), ttl)
	}

	sessionFile := os.Getenv("SESSION_FILE")
	if sessionFile == "" {
		sessionFile = defaultSessionFile
	}
	sessions := state.NewFileSession(sessionFile)

	logger := log.New()
	app := state.New(backend, sessions, logger)

	// A persisted session is resolved with a full fetch at startup.
	if userID, err := sessions.Load(); err == nil && userID != "" {
		if err := app.FetchAll(context.Background()); err != nil {
			logger.WithError(err).Warn("startup fetch failed, data loads on next request")
		}
	}

	auth := api.NewAuth(sessionSecret)

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	api.Register(e, app, auth, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}
