package identity

import (
	"context"
	"strings"

	"github.com/reconciler/backend/internal/domain/place"
)

// Profile is the public identity record of an account.
type Profile struct {
	Account     string
	Username    string
	Name        string
	Description string
	Image       string
	ImageMedium string
	ImageSmall  string
	TokenID     *string
	PlaceID     *int64
}

// ImageConfig locates profile images
type ImageConfig struct {
	// Domain is the IPFS gateway host, without scheme
	Domain string
	// DefaultImage is the IPFS hash used when nothing better is known
	DefaultImage string
}

// FormatImage turns an IPFS hash into a gateway link. Values that are already
// absolute links are returned unchanged.
func (c ImageConfig) FormatImage(ref string) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return "https://" + strings.TrimSuffix(c.Domain, "/") + "/" + strings.TrimPrefix(ref, "ipfs://")
}

// WithImages returns a copy of p with every image link formatted
func (c ImageConfig) WithImages(p Profile) Profile {
	p.Image = c.FormatImage(p.Image)
	p.ImageMedium = c.FormatImage(p.ImageMedium)
	p.ImageSmall = c.FormatImage(p.ImageSmall)
	return p
}

// AnonymousProfile is the placeholder identity of an unknown account
func AnonymousProfile(account string, images ImageConfig) Profile {
	return images.WithImages(Profile{
		Account:     account,
		Username:    "anonymous",
		Name:        "Anonymous",
		Description: "This user does not have a profile",
		Image:       images.DefaultImage,
		ImageMedium: images.DefaultImage,
		ImageSmall:  images.DefaultImage,
	})
}

// PlaceProfile is the identity of an account registered to a place
func PlaceProfile(account string, p place.Place, images ImageConfig) Profile {
	image := images.DefaultImage
	if p.Image != nil && *p.Image != "" {
		image = *p.Image
	}
	description := ""
	if p.Description != nil {
		description = *p.Description
	}
	id := p.ID
	return images.WithImages(Profile{
		Account:     account,
		Username:    p.Name,
		Name:        p.Name,
		Description: description,
		Image:       image,
		ImageMedium: image,
		ImageSmall:  image,
		PlaceID:     &id,
	})
}

// Repository persists profiles
type Repository interface {
	// FindByAccount returns nil, nil when absent
	FindByAccount(ctx context.Context, account string) (*Profile, error)

	// Upsert inserts or overwrites the profile for its account
	Upsert(ctx context.Context, p Profile) error

	// InsertIfAbsent inserts the profile unless one exists for the account.
	// Returns true when a row was written.
	InsertIfAbsent(ctx context.Context, p Profile) (bool, error)
}

// Source looks up an account's profile outside the store, e.g. on chain.
type Source interface {
	// Lookup returns nil, nil when the source knows nothing about the account
	Lookup(ctx context.Context, account string) (*Profile, error)
}
