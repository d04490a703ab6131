package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"lookmate_back/ai"
	"lookmate_back/authorization"
	"lookmate_back/closet"
	"lookmate_back/looks"
	"lookmate_back/notify"
	"lookmate_back/products"
	"lookmate_back/seed"
	filestore "lookmate_back/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func mustLoadEnv() {
	_ = godotenv.Load()
}

func main() {
	mustLoadEnv()

	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
	})

	authModule, err := authorization.RegisterRoutes(r)
	if err != nil {
		log.Fatalf("register auth routes: %v", err)
	}
	guard := authModule.Guard()

	store, err := filestore.NewImageStoreFromEnv()
	if err != nil {
		log.Fatalf("init image store: %v", err)
	}
	if dir := store.LocalDir(); dir != "" {
		r.Static("/uploads", dir)
	}

	notifyCenter := notify.RegisterRoutes(r, guard)

	aiService := ai.NewServiceFromEnv(notifyCenter)

	if _, err := ai.RegisterRoutes(r, store, aiService); err != nil {
		log.Fatalf("register ai routes: %v", err)
	}

	if _, err := closet.RegisterRoutes(r, guard, aiService, store); err != nil {
		log.Fatalf("register closet routes: %v", err)
	}

	if _, err := looks.RegisterRoutes(r, guard); err != nil {
		log.Fatalf("register looks routes: %v", err)
	}

	products.RegisterRoutes(r)

	if err := seed.Run(); err != nil {
		log.Printf("seed demo data: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("start server: %v", err)
	}
}
