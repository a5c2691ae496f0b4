package document

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/plumecms/plume/internal/api"
)

// Info resolves and holds a document's published snapshot, version
// list, and unpublished drafts. It is the sole writer of that state;
// field bindings and the editing UI read through its accessors.
type Info struct {
	desc   Descriptor
	client *api.Client
	log    zerolog.Logger

	mu          sync.Mutex
	published   map[string]any
	versions    *VersionList
	unpublished *VersionList
}

// NewInfo creates a provider for one document. Nothing is fetched until
// RefreshVersions is called.
func NewInfo(client *api.Client, desc Descriptor, log zerolog.Logger) *Info {
	return &Info{desc: desc, client: client, log: log}
}

// Descriptor returns the document's identity.
func (i *Info) Descriptor() Descriptor {
	return i.desc
}

// PreferenceKey derives the document's UI preference key; empty for an
// unsaved collection document.
func (i *Info) PreferenceKey() string {
	return i.desc.PreferenceKey()
}

// RefreshVersions fetches the published snapshot, the version list, and
// any versions newer than the published snapshot (unpublished drafts),
// then publishes all three atomically. It is safe to call concurrently;
// racing calls each complete and the last write wins.
//
// For a collection document without an id nothing is fetched and the
// held state is untouched. A non-2xx response to the drafts probe means
// "no drafts"; every other fetch failure propagates to the caller.
func (i *Info) RefreshVersions(ctx context.Context) error {
	if i.desc.Type == TypeCollection && i.desc.ID == "" {
		return nil
	}

	// Published means status "published", or no status field at all for
	// documents predating versioning.
	statusFilter := api.Or(
		api.Equals("_status", "published"),
		api.Exists("_status", false),
	)

	var published map[string]any
	if i.desc.Type == TypeGlobal {
		doc, err := i.client.FindGlobal(ctx, i.desc.Slug, statusFilter)
		if err != nil {
			return err
		}
		published = doc
	} else {
		docs, err := i.client.FindDocs(ctx, i.desc.Slug, api.And(
			statusFilter,
			api.Equals("id", i.desc.ID),
		))
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			published = docs[0]
		}
	}

	var versions, unpublished *VersionList
	if i.desc.Versions {
		var where api.Where
		if i.desc.Type == TypeCollection {
			where = api.Equals("parent", i.desc.ID)
		}
		page, err := i.client.FindVersions(ctx, i.desc.versionsEntity(), where)
		if err != nil {
			return err
		}
		versions = convertVersions(page)

		if ts, ok := updatedAtOf(published); ok {
			unpublished, err = i.fetchNewerVersions(ctx, ts)
			if err != nil {
				return err
			}
		}
	}

	i.mu.Lock()
	i.published = published
	i.versions = versions
	i.unpublished = unpublished
	i.mu.Unlock()
	return nil
}

// fetchNewerVersions probes for versions created after the published
// snapshot. A non-2xx response is not an error here: it means no drafts
// exist. The fallback is deliberate and logged so it stays observable.
func (i *Info) fetchNewerVersions(ctx context.Context, publishedAt string) (*VersionList, error) {
	newer := api.GreaterThan("updatedAt", publishedAt)
	var where api.Where
	if i.desc.Type == TypeCollection {
		where = api.And(newer, api.Equals("parent", i.desc.ID))
	} else {
		where = newer
	}
	page, err := i.client.FindVersions(ctx, i.desc.versionsEntity(), where)
	if err != nil {
		var fe *api.FetchError
		if errors.As(err, &fe) {
			i.log.Debug().
				Str("slug", i.desc.Slug).
				Int("status", fe.Status).
				Msg("drafts probe refused; treating as no drafts")
			return nil, nil
		}
		return nil, err
	}
	return convertVersions(page), nil
}

func convertVersions(page *api.Paginated) *VersionList {
	out := &VersionList{
		Docs:       make([]Version, 0, len(page.Docs)),
		TotalDocs:  page.TotalDocs,
		Page:       page.Page,
		TotalPages: page.TotalPages,
		Limit:      page.Limit,
	}
	for _, doc := range page.Docs {
		out.Docs = append(out.Docs, versionFromDoc(doc))
	}
	return out
}

// PublishedDoc returns the current published snapshot, or nil when none
// has been fetched or none exists.
func (i *Info) PublishedDoc() map[string]any {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.published
}

// Versions returns the fetched version list, or nil.
func (i *Info) Versions() *VersionList {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.versions
}

// UnpublishedVersions returns versions newer than the published
// snapshot, or nil.
func (i *Info) UnpublishedVersions() *VersionList {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.unpublished
}
