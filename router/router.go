package router

import (
	"context"
	"net/http"

	handlers "blogcore/handler"
	postHandler "blogcore/internal/post"
	postService "blogcore/internal/post/service"
	sessionHandler "blogcore/internal/session"
	sessionService "blogcore/internal/session/service"
	"blogcore/middleware"
	"blogcore/socket"
	"blogcore/store"
)

// Deps is everything the HTTP surface is built from.
type Deps struct {
	Sessions       sessionService.Gateway
	Posts          *postService.PostService
	Store          *store.Store
	Hub            *socket.Hub
	AllowedOrigins []string
	Guard          middleware.GuardConfig
}

// Setup wires the routes. ctx is the application context; websocket clients
// live until it is done.
func Setup(ctx context.Context, d Deps) http.Handler {
	mux := http.NewServeMux()

	auth := middleware.AuthMiddleware(d.Store)
	protected := middleware.Guard(d.Store, true, d.Guard)
	guestOnly := middleware.Guard(d.Store, false, d.Guard)
	origins := middleware.NewOriginPolicy(d.AllowedOrigins)
	upgrader := socket.NewUpgrader(origins.AllowRequest)

	mux.HandleFunc("GET /healthz", handlers.Health(d.Store))

	// WebSocket
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(ctx, d.Hub, upgrader, w, r)
	})

	// Session
	sessions := sessionHandler.NewSessionHandler(d.Sessions, d.Store)
	mux.HandleFunc("POST /auth/signup", sessions.SignUp)
	mux.HandleFunc("POST /auth/login", sessions.Login)
	mux.HandleFunc("POST /auth/logout", sessions.Logout)
	mux.Handle("GET /me", protected(http.HandlerFunc(sessions.Me)))
	mux.Handle("GET /login", guestOnly(http.HandlerFunc(sessions.State)))

	// Posts and files
	posts := postHandler.NewPostHandler(d.Posts)
	mux.HandleFunc("GET /posts", posts.ListPosts)
	mux.HandleFunc("GET /posts/{slug}", posts.GetPost)
	mux.Handle("POST /posts", auth(http.HandlerFunc(posts.CreatePost)))
	mux.Handle("PATCH /posts/{slug}", auth(http.HandlerFunc(posts.UpdatePost)))
	mux.Handle("DELETE /posts/{slug}", auth(http.HandlerFunc(posts.DeletePost)))
	mux.Handle("POST /files", auth(http.HandlerFunc(posts.UploadFile)))
	mux.Handle("DELETE /files/{id}", auth(http.HandlerFunc(posts.DeleteFile)))
	mux.HandleFunc("GET /files/{id}/preview", posts.PreviewFile)

	return middleware.CORSMiddleware(d.AllowedOrigins)(mux)
}
