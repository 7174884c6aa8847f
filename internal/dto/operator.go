package dto

type ThreadResponse struct {
	ThreadID      string `json:"thread_id"`
	VisitorID     string `json:"visitor_id"`
	Open          bool   `json:"open"`
	ClosedAt      string `json:"closed_at,omitempty"`
	ReopenedCount int    `json:"reopened_count"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	LastMessageAt string `json:"last_message_at,omitempty"`
}

type ThreadsListResponse struct {
	Threads []ThreadResponse `json:"threads"`
}

type OperatorMessageRequest struct {
	Text string `json:"text"`
}

type ThreadCloseResponse struct {
	OK     bool           `json:"ok"`
	Thread ThreadResponse `json:"thread"`
}
