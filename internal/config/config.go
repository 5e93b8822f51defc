package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config é lido uma vez no boot e injetado — nada de os.Getenv
// espalhado pelos componentes nem singleton mutável de segredo.
type Config struct {
	Port        string
	DatabaseURL string

	// Segredo compartilhado do webhook. Vazio = fail closed (o handler
	// rejeita toda entrega).
	WebhookSecret string

	WahaBaseURL string
	WahaAPIKey  string

	RabbitUser string
	RabbitPass string
	RabbitHost string
	RabbitPort string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string
	OpsEmail string

	AllowedOrigins []string
}

func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		WebhookSecret: os.Getenv("WAHA_WEBHOOK_SECRET"),
		WahaBaseURL:   strings.TrimRight(os.Getenv("WAHA_BASE_URL"), "/"),
		WahaAPIKey:    os.Getenv("WAHA_API_KEY"),

		RabbitUser: getEnv("RABBITMQ_USER", "guest"),
		RabbitPass: getEnv("RABBITMQ_PASS", "guest"),
		RabbitHost: os.Getenv("RABBITMQ_HOST"),
		RabbitPort: getEnv("RABBITMQ_PORT", "5672"),

		SMTPHost: os.Getenv("MAIL_HOST"),
		SMTPPort: getEnvInt("MAIL_PORT", 587),
		SMTPUser: os.Getenv("MAIL_USER"),
		SMTPPass: os.Getenv("MAIL_PASS"),
		MailFrom: getEnv("MAIL_FROM", "nao-responda@liguemedicina.com"),
		OpsEmail: os.Getenv("OPS_EMAIL"),

		AllowedOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL é obrigatório")
	}
	if cfg.WebhookSecret == "" {
		log.Println("⚠️ WAHA_WEBHOOK_SECRET não configurado: todo webhook será rejeitado (fail closed)")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
