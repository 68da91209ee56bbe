package proto

// Request/response envelopes. These carry payloads and nothing else; validity
// beyond shape (trivially-false filters, schema legality) is enforced by the
// backend when the request is processed.

// SearchRequest selects live entries matching a filter.
type SearchRequest struct {
	Filter Filter `json:"filter"`
}

// SearchResponse returns the matched entries.
type SearchResponse struct {
	Entries []Entry `json:"entries"`
}

// CreateRequest carries one or more complete entries to create.
type CreateRequest struct {
	Entries []Entry `json:"entries"`
}

// DeleteRequest selects live entries to delete. Deletion is soft: entries
// move to the recycle set and can be revived.
type DeleteRequest struct {
	Filter Filter `json:"filter"`
}

// ModifyRequest applies a modify list to every entry matching the filter.
type ModifyRequest struct {
	Filter  Filter     `json:"filter"`
	ModList ModifyList `json:"modlist"`
}

// OperationResponse is the empty acknowledgement of a successful write.
type OperationResponse struct{}

// SearchRecycledRequest selects soft-deleted entries matching a filter.
type SearchRecycledRequest struct {
	Filter Filter `json:"filter"`
}

// ReviveRecycledRequest restores soft-deleted entries matching a filter.
type ReviveRecycledRequest struct {
	Filter Filter `json:"filter"`
}

// WhoamiResponse returns the caller's own entry plus the current token.
// Whoami is the only operation that is idempotent and side-effect-free by
// construction.
type WhoamiResponse struct {
	YouAre Entry         `json:"youare"`
	UAT    UserAuthToken `json:"uat"`
}
