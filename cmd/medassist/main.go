package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/medlife-ai/medassist/internal/api/handlers"
	"github.com/medlife-ai/medassist/internal/api/middleware"
	"github.com/medlife-ai/medassist/internal/db"
	"github.com/medlife-ai/medassist/internal/logging"
	"github.com/medlife-ai/medassist/internal/providers"
	"github.com/medlife-ai/medassist/internal/upstream"
	"github.com/medlife-ai/medassist/internal/version"
)

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err == nil {
		log.Printf("✅ Loaded environment from .env")
	}

	dbPath := os.Getenv("MEDASSIST_DB")
	if dbPath == "" {
		dbPath = "medassist.db"
	}
	database, err := db.InitDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if err := providers.Init(); err != nil {
		log.Fatalf("Failed to load provider catalog: %v", err)
	}

	upstreamClient := upstream.NewClient()

	// One question per second with a small burst is plenty for a chat UI.
	limiter := middleware.NewUserRateLimiter(1, 5)

	r := chi.NewRouter()
	r.Use(logging.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// ============================================
	// Public Routes (No Auth Required)
	// ============================================

	r.Post("/signup", handlers.SignupHandler(database))
	r.Post("/signin", handlers.SigninHandler(database))

	// ============================================
	// Protected Routes (Bearer Token Required)
	// ============================================

	r.Route("/medlife", func(r chi.Router) {
		r.Use(middleware.JWTAuth(database))

		// Member management
		r.Post("/addmember", handlers.AddMemberHandler(database))
		r.Post("/editmember", handlers.EditMemberHandler(database))
		r.Get("/getmember", handlers.GetMembersHandler(database))
		r.Delete("/deletemember", handlers.DeleteMemberHandler(database))

		// Question allowance
		r.Get("/tokens/", handlers.TokensHandler(database))
		r.Get("/tokensCount/", handlers.TokensCountHandler(database))

		// Chat
		r.With(limiter.Middleware).Get("/ask_ai/", handlers.AskAIHandler(upstreamClient))
		r.With(limiter.Middleware).Get("/prompt/", handlers.PromptHandler(upstreamClient))
		r.Post("/saveChat/", handlers.SaveChatHandler(database))
		r.Get("/fetchChat/", handlers.FetchChatHandler(database))
		r.Post("/exportChat/", handlers.ExportChatHandler())
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.JWTAuth(database))
		r.Get("/get-username", handlers.UsernameHandler(database))
		r.Get("/get-user-gender", handlers.UserGenderHandler(database))
		r.Get("/member-details/{email}/{memberIndex}", handlers.MemberDetailsHandler(database))
	})

	host := os.Getenv("HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}
	addr := host + ":" + port

	log.Printf("🚀 MedAssist API %s (%s) starting on http://%s", version.Version, version.Commit, addr)

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
