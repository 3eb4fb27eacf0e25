package config

import "time"

type Config struct {
	ServerAddr string
	// URL вебхука, как он зарегистрирован в g2g: участвует в подписи
	WebhookURL    string
	WebhookSecret string
	AccountID     string

	ShutdownTimeout time.Duration
}
