package server

import "net/http"

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/chat/schema", s.handleSchema)
	mux.HandleFunc("GET /api/chats/{chatId}", s.handleHistory)
	mux.HandleFunc("POST /api/hello", s.handleHello)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}
