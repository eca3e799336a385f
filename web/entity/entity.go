// Package entity defines the JSON shapes exchanged by the web layer.
package entity

// Msg is the error envelope returned by every failing endpoint.
type Msg struct {
	Error string `json:"error"`
}

// Message is a success envelope that carries only text.
type Message struct {
	Message string `json:"message"`
}

// DataMsg is the success envelope for single-object responses.
type DataMsg struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// PageMsg is the envelope shared by every paginated list endpoint.
type PageMsg struct {
	Message    string     `json:"message"`
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}
