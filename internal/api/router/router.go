package router

import (
	_ "embed"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"impulsame/internal/api/registration"
	"impulsame/internal/pkg/cache"
	"impulsame/internal/pkg/middleware"
)

//go:embed doc.json
var openAPISpec []byte

// NewRouter configura e retorna o roteador HTTP principal.
// Recebe os Handlers já inicializados por injeção de dependências.
func NewRouter(registrationHandler *registration.Handler, cacheClient cache.Client, rateLimitMax int, rateLimitPeriod time.Duration) http.Handler {

	// Usamos o ServeMux padrão do net/http para roteamento
	mux := http.NewServeMux()

	// --- 1. Rotas de Health Check ---
	mux.HandleFunc("/ping", PingHandler)

	// --- 2. Rotas do Módulo de Registro (v1) ---

	// POST /v1/users/register (Fase um: dados textuais)
	mux.HandleFunc("/v1/users/register", registrationHandler.RegisterUserHandler)

	// POST /v1/users/files (Fase dois: documentos)
	mux.HandleFunc("/v1/users/files", registrationHandler.AttachDocumentsHandler)

	// --- 3. Documentação (Swagger UI sobre o spec versionado) ---
	mux.HandleFunc("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(openAPISpec)
	})
	mux.Handle("/swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// --- 4. Middlewares Globais ---
	return middleware.RateLimiter(cacheClient, rateLimitMax, rateLimitPeriod)(mux)
}

// PingHandler é uma função utilitária para o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
