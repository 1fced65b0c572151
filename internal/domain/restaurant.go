package domain

// ============================================================
// Restaurant catalog
// ============================================================

// DayAvailability holds the optional opening windows for one day.
type DayAvailability struct {
	Morning string `json:"morning,omitempty"`
	Evening string `json:"evening,omitempty"`
}

// Restaurant is a partner venue. The hosted store is the authoritative
// owner; the API holds only transient read-mostly copies.
type Restaurant struct {
	ID           int64                      `json:"id,omitempty"`
	Name         string                     `json:"name"`
	Location     string                     `json:"location"`
	Cuisine      string                     `json:"cuisine"`
	Address      string                     `json:"address"`
	Phone        string                     `json:"phone"`
	Description  string                     `json:"description"`
	Promotion    string                     `json:"promotion"`
	Availability map[string]DayAvailability `json:"availability,omitempty"`
	Features     []string                   `json:"features,omitempty"`
	LogoURL      string                     `json:"logo_url,omitempty"`
}

// LogoUpload is an optional logo file attached to a restaurant submission.
type LogoUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}
