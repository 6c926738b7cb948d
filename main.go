package main

import (
	"os"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"solace/account"
	"solace/cache"
	"solace/common"
	"solace/database"
	"solace/feed"
	"solace/site"
)

const sessionName = "solace-session"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn("no .env file found, relying on environment")
	}

	db := common.ConnectDb()
	if db == nil {
		log.Fatal("Failed to connect to database")
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	router := gin.Default()

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		log.Fatal("SESSION_SECRET environment variable not set")
	}

	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   false,
	})

	router.Use(sessions.Sessions(sessionName, store))
	router.Use(cache.CacheMiddleware(sessionName, 10*time.Minute))

	router.LoadHTMLGlob("site/views/*.html")
	router.Static("/public", "./public")

	accountModule := account.NewAccountModule(db)
	accountModule.RegisterRoutes(router)

	feedModule := feed.NewFeedModule(db)
	feedModule.RegisterRoutes(router)

	siteModule := site.NewSiteModule(db)
	siteModule.RegisterRoutes(router)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Infof("Starting server on port %s...", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
