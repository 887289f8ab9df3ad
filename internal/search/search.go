// Package search indexes item text so users can find entries across
// lists. Meilisearch is the primary backend; a plain PostgreSQL match
// serves as the fallback when it is absent or unhealthy.
package search

// Record is the data indexed per item.
type Record struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	List string `json:"list"`
}

// Query describes a search request. List narrows the search to one
// list; empty searches everywhere.
type Query struct {
	Text  string
	List  string
	Limit int
}

// Result is a single hit.
type Result struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	List string `json:"list"`
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Query   string   `json:"query"`
}
