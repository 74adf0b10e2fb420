package recording

import "time"

// Entry is a stored blob as the store sees it.
type Entry struct {
	Filename  string
	CreatedAt time.Time
	Size      int64
}

// Meta is the mutable annotation kept in the overlay for one filename.
type Meta struct {
	CustomName string    `json:"customName"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Ref identifies a freshly uploaded recording.
type Ref struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// View is a recording as listed to its owner.
type View struct {
	Filename   string  `json:"filename"`
	CustomName *string `json:"customName"`
	URL        string  `json:"url"`
	Timestamp  float64 `json:"timestamp"`
}
