package model

// RowError describes one spreadsheet row the backend refused.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// ImportResult is the backend's answer to a bulk upload.
type ImportResult struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	TotalRows   int          `json:"totalRows,omitempty"`
	ValidRows   int          `json:"validRows,omitempty"`
	InvalidRows int          `json:"invalidRows,omitempty"`
	Assignments []Assignment `json:"assignments,omitempty"`
	Errors      []RowError   `json:"errors,omitempty"`
}
