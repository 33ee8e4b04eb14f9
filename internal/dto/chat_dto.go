package dto

type StartTurnRequest struct {
	SessionId string `json:"session_id" form:"session_id"`
	Message   string `json:"message" form:"message" validate:"max=8000"`
}

type StartTurnResponse struct {
	StreamId  string `json:"stream_id"`
	SessionId string `json:"session_id"`
}

type HistoryEntryResponse struct {
	Timestamp   string `json:"timestamp"`
	UserMessage string `json:"user_message"`
	LLMResponse string `json:"llm_response"`
}

type GetHistoryResponse struct {
	SessionId string                 `json:"session_id"`
	Title     string                 `json:"title,omitempty"`
	Entries   []HistoryEntryResponse `json:"entries"`
}

type SessionResponse struct {
	SessionId string `json:"session_id"`
	Title     string `json:"title,omitempty"`
	CreatedAt string `json:"created_at"`
}

type ListSessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}
