package store

import "time"

// ActionType classifies what an activity log entry did.
type ActionType string

const (
	ActionCreate  ActionType = "CREATE"
	ActionRead    ActionType = "READ"
	ActionUpdate  ActionType = "UPDATE"
	ActionDelete  ActionType = "DELETE"
	ActionExecute ActionType = "EXECUTE"
)

// Status is the outcome of an audited action.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// ActorSnapshot freezes who acted, as they were at the time.
type ActorSnapshot struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// RequestContext is the client information attached to an entry.
type RequestContext struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// ActivityLog is one audit trail entry. ActorID is empty for the system actor.
type ActivityLog struct {
	ID            string         `json:"id"`
	ActorID       string         `json:"actorId,omitempty"`
	ActorSnapshot ActorSnapshot  `json:"actorSnapshot"`
	ActionType    ActionType     `json:"actionType"`
	Status        Status         `json:"status"`
	EntityType    string         `json:"entityType"`
	EntityID      string         `json:"entityId,omitempty"`
	Changes       map[string]any `json:"changes,omitempty"`
	Context       RequestContext `json:"context"`
	FailureReason string         `json:"failureReason,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// PageMeta describes a page of results.
type PageMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
	LastPage   int `json:"lastPage"`
}

// NewPageMeta computes pagination metadata. An empty result still has one page.
func NewPageMeta(total, page, limit int) PageMeta {
	pages := 1
	if limit > 0 && total > 0 {
		pages = (total + limit - 1) / limit
	}
	return PageMeta{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: pages,
		LastPage:   pages,
	}
}

// NormalizePage clamps page to >= 1 and limit to [1, maxLimit].
func NormalizePage(page, limit, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
