// Package api implements the client for the incident backend's REST
// surface: multipart incident creation, read endpoints, and the optional
// websocket notification listener. The sync engine consumes it as a black
// box returning either a remote identifier or an error.
package api

// NewIncidentRequest is the JSON metadata part of the multipart create
// request. Field names follow the backend contract.
type NewIncidentRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Datetime    string  `json:"datetime"` // wire format: 2006-01-02T15:04:05
	Urgency     bool    `json:"urgency"`
	UserID      int64   `json:"userId"`

	// ClientKey is the client-generated idempotency key. The backend treats a
	// repeated key as a re-delivery of the same incident, making retry safe.
	ClientKey string `json:"clientKey,omitempty"`
}

// IncidentResponse is a created or listed incident as returned by the backend.
type IncidentResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Datetime    string  `json:"datetime"`
	Urgency     bool    `json:"urgency"`
	UserID      int64   `json:"userId"`
	PhotoURL    string  `json:"photoUrl,omitempty"`
	VideoURL    string  `json:"videoUrl,omitempty"`
}
