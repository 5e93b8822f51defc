package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xavierca1/ligue-crm/internal/config"
	"github.com/xavierca1/ligue-crm/internal/infra/database"
	"github.com/xavierca1/ligue-crm/internal/infra/http/handlers"
	custommw "github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
	"github.com/xavierca1/ligue-crm/internal/infra/integration/waha"
	"github.com/xavierca1/ligue-crm/internal/infra/mail"
	"github.com/xavierca1/ligue-crm/internal/infra/queue"
	"github.com/xavierca1/ligue-crm/internal/infra/worker"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.NewDBConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// 1. Repositórios
	leadRepo := database.NewLeadRepository(db)
	agentRepo := database.NewAgentRepository(db)
	auditRepo := database.NewAuditLogRepository(db)
	leadStore := database.NewLeadStore(db)

	// 2. Auditoria (RabbitMQ). Opcional: sem broker o pipeline roda sem
	// trilha de auditoria, só com log.
	var auditProducer queue.AuditPublisherInterface
	var rabbitConn *amqp.Connection
	if cfg.RabbitHost != "" {
		rabbitMQ, err := queue.NewRabbitMQ(cfg.RabbitUser, cfg.RabbitPass, cfg.RabbitHost, cfg.RabbitPort)
		if err != nil {
			log.Fatal(err)
		}
		defer rabbitMQ.Conn.Close()
		defer rabbitMQ.Ch.Close()

		rabbitConn = rabbitMQ.Conn
		auditProducer = queue.NewAuditProducer(rabbitMQ.Conn, rabbitMQ.Ch)

		// 3. Worker: consome a fila e grava em audit_logs
		auditWorker := queue.NewAuditWorker(rabbitMQ.Ch, auditRepo)
		go auditWorker.Start(queue.QueueName)
	} else {
		log.Println("⚠️ RABBITMQ_HOST não configurado: auditoria desativada")
	}

	// 4. Gateway e alertas
	wahaClient := waha.NewClient(cfg.WahaBaseURL, cfg.WahaAPIKey)
	mailSender := mail.NewEmailSender(
		cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, cfg.OpsEmail,
	)

	// 5. Worker de leads sem resposta
	unansweredWorker := worker.NewUnansweredLeadsWorker(db, mailSender)
	go unansweredWorker.Start(context.Background())

	// 6. UseCases
	ingestUC := usecase.NewIngestMessageUseCase(leadStore, auditProducer, mailSender)
	sendUC := usecase.NewSendMessageUseCase(leadRepo, leadStore, wahaClient, auditProducer)

	// 7. Handlers
	webhookHandler := handlers.NewWebhookHandler(cfg.WebhookSecret, ingestUC)
	messageHandler := handlers.NewMessageHandler(sendUC)
	leadHandler := handlers.NewLeadHandler(leadRepo)
	healthHandler := handlers.NewHealthHandler(db, rabbitConn, wahaClient.Configured())

	agentAuth := custommw.NewAgentAuth(agentRepo)

	// 8. Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	r.Use(custommw.Metrics)

	r.Get("/health", healthHandler.Handle)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/webhook/waha", webhookHandler.Handle)

	r.Group(func(pr chi.Router) {
		pr.Use(agentAuth.RequireAgent)
		pr.Post("/messages/send", messageHandler.HandleSend)
		pr.Get("/leads", leadHandler.HandleList)
		pr.Get("/leads/{id}", leadHandler.HandleGet)
		pr.Get("/leads/{id}/messages", leadHandler.HandleMessages)
		pr.Post("/leads/{id}/read", leadHandler.HandleMarkRead)
	})

	addr := ":" + cfg.Port
	log.Printf("🔥 Server ligue-crm rodando na porta %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal(err)
	}
}
