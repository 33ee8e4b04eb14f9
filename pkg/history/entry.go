package history

import "fmt"

// Entry is one completed exchange in a session's conversation log.
// Timestamp is ISO-8601 (RFC 3339).
type Entry struct {
	Timestamp   string `json:"timestamp"`
	UserMessage string `json:"user_message"`
	LLMResponse string `json:"llm_response"`
}

// PersistenceError reports a failed history read or write. Callers log it
// and continue; a finished response is never rolled back over it.
type PersistenceError struct {
	SessionID string
	Op        string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("history %s failed for session %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Window returns the most recent n entries, preserving order. The input
// slice is not modified.
func Window(entries []Entry, n int) []Entry {
	if n <= 0 {
		return nil
	}
	if len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}
