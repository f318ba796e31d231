package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"
	"golang.org/x/time/rate"

	ginGzip "github.com/gin-contrib/gzip"

	"github.com/gin-gonic/gin"

	catalog "campusguesser/internal/catalog"
	constants "campusguesser/internal/constants"
	handlers "campusguesser/internal/handlers"
	leaderboard "campusguesser/internal/leaderboard"
	session "campusguesser/internal/session"
	util "campusguesser/internal/util"
)

type RateLimiterWithTime struct {
	Limiter    *rate.Limiter
	LastAccess time.Time
}

type App struct {
	IsProduction   bool
	StartTime      time.Time
	RateLimitRPS   int
	RateLimitBurst int
	RateLimiterTTL time.Duration
	LimiterMap     map[string]*RateLimiterWithTime
	LimiterMutex   sync.RWMutex
	StaticCacheAge time.Duration
}

func main() {
	_ = godotenv.Load()

	isProduction := os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production"
	util.LogInfo("Starting CampusGuesser in %s mode", map[bool]string{true: "production", false: "development"}[isProduction])

	dataDir := util.GetEnvStr("DATA_DIR", "data")
	mapPath := util.GetEnvStr("MAP_PATH", "assets/campus_map.png")
	mapWidth := util.GetEnvInt("MAP_WIDTH", 1920)
	mapHeight := util.GetEnvInt("MAP_HEIGHT", 1080)

	cat, err := catalog.Open(dataDir, mapWidth, mapHeight)
	if err != nil {
		util.LogFatal("Failed to open location catalog: %v", err)
	}
	util.LogInfo("Catalog ready with %d locations (map %dx%d)", cat.Len(), mapWidth, mapHeight)

	board := leaderboard.Open(dataDir + "/leaderboard.json")

	sessionTTL := util.GetEnvDuration("SESSION_TTL", 3*time.Hour)
	sessions := session.NewRegistry(sessionTTL)

	app := &App{
		IsProduction:   isProduction,
		StartTime:      time.Now(),
		RateLimitRPS:   util.GetEnvInt("RATE_LIMIT_RPS", 5),
		RateLimitBurst: util.GetEnvInt("RATE_LIMIT_BURST", 10),
		RateLimiterTTL: util.GetEnvDuration("RATE_LIMITER_TTL", 1*time.Hour),
		LimiterMap:     make(map[string]*RateLimiterWithTime),
		StaticCacheAge: util.GetEnvDuration("STATIC_CACHE_AGE", 5*time.Minute),
	}

	api := &handlers.API{
		Catalog:       cat,
		Board:         board,
		Sessions:      sessions,
		RoundDuration: time.Duration(util.GetEnvInt("ROUND_SECONDS", constants.DefaultRoundSeconds)) * time.Second,
		CookieMaxAge:  util.GetEnvDuration("COOKIE_MAX_AGE", 2*time.Hour),
		Secure:        isProduction,
		StartTime:     app.StartTime,
	}

	router := gin.Default()

	router.Use(requestIDMiddleware())
	router.Use(securityHeadersMiddleware())

	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedExtensions([]string{".svg", ".ico", ".png", ".jpg", ".jpeg", ".gif"})))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		util.LogWarn("Failed to set trusted proxies: %v", err)
	}

	router.Use(func(c *gin.Context) {
		app.applyCacheHeaders(c)
	})

	router.StaticFile("/map", mapPath)
	router.Static("/images", dataDir+"/images")

	router.POST(constants.RouteGame, app.rateLimitMiddleware(), api.NewGame)
	router.GET(constants.RouteGame, api.GameState)
	router.POST(constants.RouteGuess, app.rateLimitMiddleware(), api.Guess)
	router.GET(constants.RouteSummary, api.Summary)
	router.GET(constants.RouteLeaderboard, api.Leaderboard)
	router.GET(constants.RouteAdminLocations, api.ListLocations)
	router.POST(constants.RouteAdminLocations, app.rateLimitMiddleware(), api.RegisterLocation)
	router.PATCH(constants.RouteAdminLocations+"/:id", app.rateLimitMiddleware(), api.BackfillLocation)
	router.GET(constants.RouteHealthz, api.Healthz)

	app.startCleanupRoutines(sessions)

	app.startServer(router)
}

func (app *App) startServer(router *gin.Engine) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		util.LogInfo("Shutdown signal received, shutting down server gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			util.LogWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	util.LogInfo("Server starting on http://localhost:%s", port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		util.LogFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed
	util.LogInfo("Server shutdown complete")
}

func (app *App) applyCacheHeaders(c *gin.Context) {
	path := c.Request.URL.Path
	static := path == "/map" || strings.HasPrefix(path, "/images/")
	if app.IsProduction && static {
		cachecontrol.New(cachecontrol.Config{
			Public: true,
			MaxAge: cachecontrol.Duration(app.StaticCacheAge),
		})(c)
		c.Header("Vary", "Accept-Encoding")
		return
	}
	cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	})(c)
}

func (app *App) startCleanupRoutines(sessions *session.Registry) {
	sessions.StartCleanup(10 * time.Minute)

	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			app.cleanupStaleRateLimiters()
		}
	}()

	util.LogInfo("Started cleanup routines for sessions and rate limiters")
}
