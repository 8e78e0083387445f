package types

// SuccessEnvelope wraps every 2xx JSON body as {"data": ..., "meta": ...}.
type SuccessEnvelope struct {
	Data any       `json:"data"`
	Meta *PageMeta `json:"meta,omitempty"`
}

// PageMeta accompanies cursor-paged lists such as ledger history.
type PageMeta struct {
	Limit      int    `json:"limit"`
	Count      int    `json:"count"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// HasMore reports whether another page can be requested.
func (m PageMeta) HasMore() bool {
	return m.NextCursor != ""
}

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
