package config

type Config struct {
	BaseURL      string
	APIKey       string
	CallbackURL  string
	CountryCodes []string
	Currency     string
}
