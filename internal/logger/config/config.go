package config

type Config struct {
	LogLevel string
	// json | console
	Encoding string
}
