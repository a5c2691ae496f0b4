// Package document models the entity being edited — a collection
// document or a global singleton — and resolves its published snapshot,
// version history, and unpublished drafts from the admin API.
package document

// Type distinguishes collection documents from globals.
type Type string

const (
	// TypeCollection is a document in a collection; it has an id once
	// saved.
	TypeCollection Type = "collection"
	// TypeGlobal is a slug-identified singleton without an id.
	TypeGlobal Type = "global"
)

// Descriptor identifies one editable document.
type Descriptor struct {
	Type Type
	Slug string
	// ID is set for saved collection documents; empty for new documents
	// and for globals.
	ID string
	// Versions reports whether versioning is enabled for the entity.
	Versions bool
}

// PreferenceKey derives the stable key UI preferences are stored under.
// A collection document without an id has no preference key.
func (d Descriptor) PreferenceKey() string {
	switch d.Type {
	case TypeGlobal:
		return "global-" + d.Slug
	case TypeCollection:
		if d.ID == "" {
			return ""
		}
		return "collection-" + d.Slug + "-" + d.ID
	}
	return ""
}

// versionsEntity is the API path prefix of the entity's versions
// endpoint.
func (d Descriptor) versionsEntity() string {
	if d.Type == TypeGlobal {
		return "globals/" + d.Slug
	}
	return d.Slug
}

// Version is one immutable historical snapshot of a document.
type Version struct {
	ID        string
	CreatedAt string
	UpdatedAt string
	// Snapshot holds the document's field values at that point.
	Snapshot map[string]any
}

// VersionList is a page of versions plus pagination totals, newest
// first as returned by the API.
type VersionList struct {
	Docs       []Version
	TotalDocs  int
	Page       int
	TotalPages int
	Limit      int
}

func versionFromDoc(doc map[string]any) Version {
	v := Version{}
	if id, ok := doc["id"].(string); ok {
		v.ID = id
	}
	if ts, ok := doc["createdAt"].(string); ok {
		v.CreatedAt = ts
	}
	if ts, ok := doc["updatedAt"].(string); ok {
		v.UpdatedAt = ts
	}
	if snap, ok := doc["version"].(map[string]any); ok {
		v.Snapshot = snap
	}
	return v
}

// updatedAtOf extracts a document's updatedAt timestamp, if present.
func updatedAtOf(doc map[string]any) (string, bool) {
	if doc == nil {
		return "", false
	}
	s, ok := doc["updatedAt"].(string)
	return s, ok && s != ""
}
