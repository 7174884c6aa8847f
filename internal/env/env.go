package env

import (
	"os"
)

const (
	AWSRegion        = "AWS_REGION"
	AWSID            = "AWS_ID"
	AWSSecret        = "AWS_SECRET"
	AWSToken         = "AWS_TOKEN"
	DynamoDBEndpoint = "DYNAMODB_ENDPOINT"
	WidgetSecretKey  = "WIDGET_TOKEN_SECRET"
	OperatorSecret   = "OPERATOR_SECRET"
	WidgetTokenTTL   = "WIDGET_TOKEN_TTL"
	ThreadStaleAfter = "THREAD_STALE_AFTER"
	ChatRedisURL     = "CHAT_REDIS_URL"
	ChatRedisPass    = "CHAT_REDIS_PASS"
	DashboardURL     = "DASHBOARD_URL"
)

// Require panics when any of the listed environment variables is unset.
// Binaries call this at startup; tests override secrets programmatically
// instead.
func Require(keys ...string) {
	for _, key := range keys {
		if os.Getenv(key) == "" {
			panic("env: required environment variable not set: " + key)
		}
	}
}

func Get(key string) string {
	return os.Getenv(key)
}

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("env: required environment variable not set: " + key)
	}
	return val
}
