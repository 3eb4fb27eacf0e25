package config

import "time"

type Config struct {
	LapakInterval    time.Duration
	LapakMaxRetries  int
	EliteInterval    time.Duration
	EliteRestartWait time.Duration
}

func (c Config) WithDefaults() Config {
	if c.LapakInterval <= 0 {
		c.LapakInterval = 10 * time.Minute
	}
	if c.LapakMaxRetries <= 0 {
		c.LapakMaxRetries = 3
	}
	if c.EliteInterval <= 0 {
		c.EliteInterval = 2 * time.Minute
	}
	if c.EliteRestartWait <= 0 {
		c.EliteRestartWait = 30 * time.Second
	}
	return c
}
