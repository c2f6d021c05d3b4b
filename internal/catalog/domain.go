package catalog

import "time"

// Category groups system features for provisioning purposes.
type Category struct {
	ID   int64
	Name string
	Slug string
}

// Feature is a protected resource. The slug is the identifier the rest of
// the system gates on.
type Feature struct {
	ID          int64
	Name        string
	Description string
	Slug        string
	CategoryID  int64
	Category    string
	URL         string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is a concrete (feature, action) pair that can be linked to a
// role.
type Permission struct {
	ID        int64
	FeatureID int64
	Action    string
}
