package config

type Config struct {
	BaseURL    string
	APIVersion string
	AccountID  string
	APIKey     string
	SecretKey  string
}
