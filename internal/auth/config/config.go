package config

import "time"

type Config struct {
	// пусто - операторский API закрыт
	SecretKey string
	TokenTTL  time.Duration
}
