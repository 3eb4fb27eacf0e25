package config

type Config struct {
	BaseURL  string
	APIKey   string
	Origin   string
	Currency string
}
