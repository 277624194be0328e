package config

import "time"

// ElasticsearchConfig points the showtime search index at a cluster
type ElasticsearchConfig struct {
	URL        string
	Index      string
	Username   string
	Password   string
	MaxRetries int
	Timeout    time.Duration
}

func loadElasticsearchConfig() ElasticsearchConfig {
	return ElasticsearchConfig{
		URL:        getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
		Index:      getEnv("ELASTICSEARCH_INDEX", "showtimes"),
		Username:   getEnv("ELASTICSEARCH_USERNAME", ""),
		Password:   getEnv("ELASTICSEARCH_PASSWORD", ""),
		MaxRetries: getEnvInt("ELASTICSEARCH_MAX_RETRIES", 3),
		Timeout:    getEnvDuration("ELASTICSEARCH_TIMEOUT", 30*time.Second),
	}
}
