package models

// LockListResponse is the paginated lock list envelope
type LockListResponse struct {
	Locks    []Lock `json:"locks"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// KeyListResponse is the key list envelope for one lock
type KeyListResponse struct {
	Lock  string `json:"lock"`
	Keys  []Key  `json:"keys"`
	Total int    `json:"total"`
}

// ErrorResponse is the standard JSON error envelope
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
