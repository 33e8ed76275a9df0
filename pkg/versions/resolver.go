package versions

import (
	"context"
	"fmt"
	"time"

	"github.com/fulmenhq/pkgsync/pkg/layout"
	"github.com/fulmenhq/pkgsync/pkg/logger"
)

// MetadataSource fetches cached remote metadata. *metacache.Cache satisfies it.
type MetadataSource interface {
	Fetch(ctx context.Context, remote string, ttl time.Duration, out any) error
	FetchIfAbsent(ctx context.Context, remote string, out any) error
}

// Resolver determines what is installed and what should be.
type Resolver struct {
	store     *LocalStore
	meta      MetadataSource
	latestTTL time.Duration
}

// NewResolver builds a Resolver. latestTTL bounds the age of a cached
// latest.json.
func NewResolver(store *LocalStore, meta MetadataSource, latestTTL time.Duration) *Resolver {
	return &Resolver{store: store, meta: meta, latestTTL: latestTTL}
}

// Local returns the installed version of id, or nil.
func (r *Resolver) Local(id string) (*Version, error) {
	return r.store.Load(id)
}

// Target returns the version to install. A pinned version is looked up in its
// immutable descriptor; otherwise the channel's latest build is used.
func (r *Resolver) Target(ctx context.Context, remote layout.Remote, pin *int) (Version, error) {
	if pin != nil {
		var doc struct {
			Name string `json:"name"`
		}
		if err := r.meta.FetchIfAbsent(ctx, remote.VersionDescriptor(*pin), &doc); err != nil {
			return Version{}, fmt.Errorf("resolve version %d: %w", *pin, err)
		}
		return Version{Version: *pin, Name: doc.Name}, nil
	}

	var latest Version
	if err := r.meta.Fetch(ctx, remote.Latest(), r.latestTTL, &latest); err != nil {
		return Version{}, fmt.Errorf("resolve latest version: %w", err)
	}
	logger.Debug("resolved latest version",
		logger.String("remote", remote.Base()), logger.Int("version", latest.Version))
	return latest, nil
}
