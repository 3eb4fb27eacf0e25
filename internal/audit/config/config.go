package config

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Backend string
	DBDsn   string

	// пусто - без стрима в Kafka
	KafkaBrokers []string
	KafkaTopic   string
}
