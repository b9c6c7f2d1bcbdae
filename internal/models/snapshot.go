package models

// Snapshot is the portable backup document of the whole catalog.
type Snapshot struct {
	Products   []Product  `json:"products"`
	Categories []Category `json:"categories"`
	ExportDate string     `json:"exportDate"`
	Version    string     `json:"version"`
}

// IsEmpty reports whether the snapshot carries no catalog data. A failed
// export is returned as an empty snapshot rather than an error.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || (len(s.Products) == 0 && len(s.Categories) == 0)
}
