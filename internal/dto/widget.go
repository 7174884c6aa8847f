// Package dto holds the request and response shapes of the public HTTP
// surface. Widget payloads use snake_case field names throughout.
package dto

type HandshakeRequest struct {
	SiteKey   string `json:"site_key"`
	VisitorID string `json:"visitor_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	PageURL   string `json:"page_url,omitempty"`
}

// HandshakeResponse leaves ThreadID and Token null until the visitor's
// first message creates them.
type HandshakeResponse struct {
	VisitorID string  `json:"visitor_id"`
	ThreadID  *string `json:"thread_id"`
	Token     *string `json:"token"`
	ExpiresIn int64   `json:"expires_in"`
	SessionID string  `json:"session_id"`
}

type MessageCreateRequest struct {
	SiteKey   string `json:"site_key"`
	ThreadID  string `json:"thread_id,omitempty"`
	VisitorID string `json:"visitor_id,omitempty"`
	Text      string `json:"text"`
	DedupeKey string `json:"dedupe_key,omitempty"`
	TmpID     string `json:"tmp_id,omitempty"`
	PageURL   string `json:"page_url,omitempty"`
}

// MessageCreateResponse carries the bootstrap fields only on the
// unauthenticated first-message variant.
type MessageCreateResponse struct {
	MessageID string `json:"message_id"`
	CreatedAt string `json:"created_at"`
	Status    string `json:"status"`
	ThreadID  string `json:"thread_id,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
}

type MessageResponse struct {
	ID          string            `json:"id"`
	Direction   string            `json:"direction"`
	Text        string            `json:"text"`
	Payload     map[string]string `json:"payload,omitempty"`
	CreatedAt   string            `json:"created_at"`
	DeliveredAt string            `json:"delivered_at,omitempty"`
	ReadAt      string            `json:"read_at,omitempty"`
}

type MessagesListResponse struct {
	Messages []MessageResponse `json:"messages"`
}

type AckRequest struct {
	SiteKey   string   `json:"site_key"`
	ThreadID  string   `json:"thread_id"`
	Delivered []string `json:"delivered"`
	Read      []string `json:"read"`
}

type AckUpdated struct {
	Delivered []string `json:"delivered"`
	Read      []string `json:"read"`
}

type AckResponse struct {
	OK      bool       `json:"ok"`
	Updated AckUpdated `json:"updated"`
}
