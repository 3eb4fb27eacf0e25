package config

import "time"

type Config struct {
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
}
