package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"codebreakers/auth"
	"codebreakers/config"
	"codebreakers/crypto"
	"codebreakers/game"
	"codebreakers/migrations"
	"codebreakers/storage"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.GET("/health", func(ctx *gin.Context) { ctx.String(200, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		if origin == "" || slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

func main() {
	// logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	if config.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	config.Load()

	// ENVs
	rawOrigins, err := config.Require("ALLOWED_ORIGINS")
	if err != nil {
		log.Fatal(err)
	}
	allowedOrigins := strings.Split(rawOrigins, ",")

	postgresUrl, err := config.Require("POSTGRES_URL")
	if err != nil {
		log.Fatal(err)
	}

	jwtKey, err := config.Require("JWT_KEY")
	if err != nil {
		log.Fatal(err)
	}

	port := config.Optional("PORT", "5000")

	if err := migrations.Migrate(postgresUrl); err != nil {
		log.Fatal(err)
	}

	// Dependencies
	pgRepo, err := storage.NewPostgresRepo(context.Background(), postgresUrl)
	if err != nil {
		log.Fatal(err)
	}
	tokenAge := time.Hour * 24 * 7 // 7 days
	passwordHasher := crypto.NewArgon2idHasher(3, 1024*64, 32, 16, 1)
	tokenManager := crypto.NewJWTManager(jwtKey, tokenAge)

	authService := auth.NewService(pgRepo, passwordHasher, tokenManager)
	authHandler := auth.NewAuthHandler(authService, tokenAge)

	r := CreateServer(allowedOrigins)

	{
		authGroup := r.Group("/auth")
		authGroup.POST("/signup", authHandler.SignupHandler)
		authGroup.POST("/login", authHandler.LoginHandler)
		authGroup.POST("/logout", authHandler.LogoutHandler)
		authGroup.GET("/refresh", authHandler.RefreshSessionHandler)
	}

	idGen := game.NewUuidGenerator()
	tickerGen := game.NewRealTickerCreator()

	lobby := game.NewLobby(idGen, tickerGen, pgRepo, game.DefaultRoomConfigs())

	lobbyStarted := make(chan struct{})
	go lobby.LobbyActor(lobbyStarted)
	<-lobbyStarted

	gameHandler := game.NewGameHandler(lobby, pgRepo, pgRepo)
	{
		gameGroup := r.Group("/game")
		gameGroup.Use(authHandler.RequireAuthMiddleware(time.Second * 2))

		gameGroup.GET("/create", gameHandler.CreateGameHandler)
		gameGroup.GET("/join/:roomid", gameHandler.JoinGameHandler)
		gameGroup.GET("/rooms", gameHandler.GetPublicGamesHandler)
	}

	r.GET("/api/leaderboard", gameHandler.GetLeaderboardHandler)

	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
