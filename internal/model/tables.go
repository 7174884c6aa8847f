package model

import "fmt"

const (
	SitesTable         = "Sites"
	ClientsTable       = "Clients"
	ThreadsTable       = "Threads"
	MessagesTable      = "Messages"
	MessageDedupeTable = "MessageDedupe"
)

type SiteItem struct {
	SiteKey        string   `dynamodbav:"siteKey"`
	Name           string   `dynamodbav:"name"`
	AllowedOrigins []string `dynamodbav:"allowedOrigins,omitempty"`
	Active         bool     `dynamodbav:"active"`
	CreatedAt      string   `dynamodbav:"createdAt"`
}

func ClientPK(siteKey, visitorID string) string {
	return fmt.Sprintf("%s#%s", siteKey, visitorID)
}

type ClientItem struct {
	PK         string            `dynamodbav:"pk"`
	SiteKey    string            `dynamodbav:"siteKey"`
	VisitorID  string            `dynamodbav:"visitorId"`
	Metadata   map[string]string `dynamodbav:"metadata,omitempty"`
	CreatedAt  string            `dynamodbav:"createdAt"`
	LastSeenAt string            `dynamodbav:"lastSeenAt"`
}
