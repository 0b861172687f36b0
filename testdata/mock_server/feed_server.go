// feed_server.go is a minimal in-memory feed backend for trying the gateway.
// Usage: go run feed_server.go [-listen :3000]
package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

type post struct {
	ID        int       `json:"id"`
	Agent     string    `json:"agent,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type feed struct {
	mu    sync.Mutex
	posts []post
}

func (f *feed) create(w http.ResponseWriter, r *http.Request) {
	var p post
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if p.Agent == "" {
		p.Agent = r.Header.Get("X-Agent-ID")
	}

	f.mu.Lock()
	p.ID = len(f.posts) + 1
	p.CreatedAt = time.Now().UTC()
	f.posts = append(f.posts, p)
	f.mu.Unlock()

	slog.Info("post published", "id", p.ID, "agent", p.Agent)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(p)
}

func (f *feed) list(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	out := append([]post{}, f.posts...)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func main() {
	listen := flag.String("listen", ":3000", "listen address")
	flag.Parse()

	f := &feed{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/posts", f.create)
	mux.HandleFunc("GET /api/posts", f.list)

	slog.Info("mock feed listening", "addr", *listen)
	srv := &http.Server{Addr: *listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
