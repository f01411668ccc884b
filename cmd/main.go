package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	// Pacotes de infraestrutura e utilitários
	"impulsame/config"
	"impulsame/internal/pkg/blob"
	"impulsame/internal/pkg/cache"
	"impulsame/internal/pkg/database"
	"impulsame/internal/pkg/logger"

	// Camadas do Registro para Injeção de Dependências
	"impulsame/internal/api/envelope"
	"impulsame/internal/api/registration"
	"impulsame/internal/api/router"
	"impulsame/internal/repository/registrationrepo"
	"impulsame/internal/service/registrationservice"
)

func main() {
	// 1. Configuração e Inicialização
	log.Println("⚡ Inicializando serviço de registro Impulsame...")

	// 0. CARREGAR VARIÁVEIS DE AMBIENTE (.env)
	// O godotenv.Load() procura por um arquivo chamado .env na raiz.
	if err := godotenv.Load(); err != nil {
		// Se o arquivo .env não for encontrado, avisamos mas continuamos,
		// pois as variáveis essenciais podem estar no ambiente do sistema.
		log.Println("⚠️ Aviso: Arquivo .env não encontrado ou erro de leitura. Carregando configs apenas do ambiente do sistema.")
	}

	cfg := config.LoadConfig() // Carrega as configurações (URLs, Timeouts, Environment, etc.)
	appLog := logger.NewLogger(cfg.LogLevel)
	appLog.Info("Configurações carregadas.", map[string]interface{}{"environment": cfg.Environment})

	// 2. Conexão com Recursos de Infraestrutura

	// A. Banco de Dados (PostgreSQL)
	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		appLog.Fatal("Falha ao conectar ao banco de dados.", err)
	}
	defer db.Close()
	appLog.Info("Conexão PostgreSQL estabelecida.", nil)

	// B. Cache (Redis)
	cacheClient := cache.NewRedisClient(cfg.RedisAddr)
	appLog.Info("Conexão Redis estabelecida.", nil)

	// C. Blob store (Cloudinary) — documentos do usuário
	blobClient, err := blob.NewCloudinaryClient(
		cfg.CloudinaryCloudName,
		cfg.CloudinaryAPIKey,
		cfg.CloudinaryAPISecret,
		cfg.BlobTimeout,
	)
	if err != nil {
		appLog.Fatal("Falha ao inicializar o blob store.", err)
	}
	appLog.Info("Cliente Cloudinary inicializado.", nil)

	// 3. INJEÇÃO DE DEPENDÊNCIAS (Repository -> Service -> Handler)

	// A. Repositório (Camada de Acesso a Dados)
	registrationRepo := registrationrepo.NewRegistrationRepository(db, cacheClient, cfg.DBTimeout, appLog)
	appLog.Debug("Repositório de Registro inicializado.", nil)

	// B. Serviço (Orquestrador do registro em duas fases)
	registrationSvc := registrationservice.NewService(registrationRepo, blobClient, appLog)
	appLog.Debug("Serviço de Registro inicializado.", nil)

	// C. Envelope Builder (ambiente resolvido uma única vez, aqui no boot)
	envelopeBuilder := envelope.NewBuilder(cfg.Environment)

	// D. Handler (Camada de Apresentação)
	registrationHandler := registration.NewHandler(registrationSvc, envelopeBuilder, appLog)
	appLog.Debug("Handler de Registro inicializado.", nil)

	// 4. Configuração e Início do Roteador/Servidor
	r := router.NewRouter(registrationHandler, cacheClient, cfg.RateLimitMaxRequests, cfg.RateLimitPeriod)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second, // Upload de documentos pode demorar mais que uma resposta comum
		IdleTimeout:  60 * time.Second,
	}

	// 5. Execução e Graceful Shutdown
	go func() {
		appLog.Info("Servidor de registro ouvindo na porta", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("Servidor falhou.", err)
		}
	}()

	// Lógica do Graceful Shutdown (captura de sinal)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	appLog.Info("Sinal de encerramento recebido. Desligando servidor...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLog.Error("Desligamento do servidor forçado.", err)
	}

	appLog.Info("Servidor encerrado com sucesso.", nil)
}
