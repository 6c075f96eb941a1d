// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/StefanGC1/PeerBridge/internal/auth"
	"github.com/StefanGC1/PeerBridge/internal/cache"
	"github.com/StefanGC1/PeerBridge/internal/database"
	"github.com/StefanGC1/PeerBridge/internal/events"
	"github.com/StefanGC1/PeerBridge/internal/handlers"
	"github.com/StefanGC1/PeerBridge/internal/lobby"
	"github.com/StefanGC1/PeerBridge/internal/middleware"
	"github.com/StefanGC1/PeerBridge/internal/presence"
	"github.com/StefanGC1/PeerBridge/internal/scheduler"
)

func main() {
	auth.Init()
	database.ConnectDB()
	if err := cache.ConnectRedis(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	hub := events.NewHub(logger)
	sched := scheduler.New(logger)
	defer sched.Shutdown()

	presenceStore := presence.NewRedisStore(cache.Rdb)
	lobbyStore := lobby.NewRedisStore(cache.Rdb)
	lobbies := lobby.NewService(lobbyStore, presenceStore, hub, sched, logger)

	srv := handlers.NewServer(logger, presenceStore, lobbies, hub)

	mux := http.NewServeMux()

	// user endpoints
	mux.HandleFunc("POST /user/register", srv.RegisterHandler)
	mux.HandleFunc("POST /user/login", srv.LoginHandler)
	mux.HandleFunc("GET /user/online", srv.OnlineHandler)
	mux.HandleFunc("GET /user/search", srv.SearchUsersHandler)
	mux.HandleFunc("POST /user/batch", srv.BatchUsersHandler)

	// friend endpoints
	mux.HandleFunc("POST /friends/add", srv.AddFriendHandler)
	mux.HandleFunc("POST /friends/accept", srv.AcceptFriendHandler)
	mux.HandleFunc("GET /friends/list", srv.ListFriendsHandler)
	mux.HandleFunc("POST /friends/remove", srv.RemoveFriendHandler)

	// lobby endpoints
	mux.HandleFunc("POST /lobby/create", srv.CreateLobbyHandler)
	mux.HandleFunc("GET /lobby/list", srv.ListLobbiesHandler)
	mux.HandleFunc("POST /lobby/join/{id}", srv.JoinLobbyHandler)
	mux.HandleFunc("POST /lobby/leave/{id}", srv.LeaveLobbyHandler)
	mux.HandleFunc("PUT /lobby/update/{id}", srv.UpdateLobbyHandler)
	mux.HandleFunc("POST /lobby/delete/{id}", srv.DeleteLobbyHandler)
	mux.HandleFunc("POST /lobby/start/{id}", srv.StartLobbyHandler)
	mux.HandleFunc("POST /lobby/stop/{id}", srv.StopLobbyHandler)
	mux.HandleFunc("POST /lobby/report-connected/{id}", srv.ReportConnectedHandler)
	mux.HandleFunc("POST /lobby/report-failed/{id}", srv.ReportFailedHandler)
	mux.HandleFunc("GET /lobby/peer-info/{id}", srv.PeerInfoHandler)

	// realtime events websocket
	mux.Handle("/ws", srv.EventsWSHandler())

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, middleware.LogMiddleware(logger)(mux)); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
