package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrObjectMissing is returned by Avatars.Confirm when the client never
// uploaded the object it is confirming.
var ErrObjectMissing = errors.New("storage: uploaded object missing")

// UploadURL is a presigned PUT for a client-side upload.
type UploadURL struct {
	PresignedURL   string `json:"presignedUrl"`
	UniqueFileName string `json:"uniqueFileName"`
}

// Avatars coordinates direct-to-bucket avatar uploads under one folder of
// the public bucket.
type Avatars struct {
	store  Store
	folder Folder
	log    *slog.Logger
}

// NewAvatars creates an Avatars for folder.
func NewAvatars(store Store, folder Folder, log *slog.Logger) *Avatars {
	return &Avatars{store: store, folder: folder, log: log}
}

// UploadURL presigns a PUT for a new avatar of ownerID.
func (a *Avatars) UploadURL(ctx context.Context, ownerID, fileName string) (UploadURL, error) {
	name := UniqueFileName(fileName)
	u, err := a.store.PresignPut(ctx, Public, ObjectKey(a.folder, ownerID, name))
	if err != nil {
		return UploadURL{}, err
	}
	return UploadURL{PresignedURL: u, UniqueFileName: name}, nil
}

// Confirm checks that the uploaded object exists and returns its public URL.
// The previous avatar object, if any, is removed on a best-effort basis.
func (a *Avatars) Confirm(ctx context.Context, ownerID, uniqueFileName string, previous *string) (string, error) {
	key := ObjectKey(a.folder, ownerID, uniqueFileName)
	if err := a.store.Stat(ctx, Public, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrObjectMissing
		}
		return "", fmt.Errorf("verify avatar upload: %w", err)
	}
	if previous != nil && *previous != "" {
		if old := a.store.KeyFromURL(*previous); old != "" && old != key {
			if err := a.store.Remove(ctx, Public, old); err != nil {
				a.log.WarnContext(ctx, "failed to delete previous avatar", "owner_id", ownerID, "key", old, "err", err)
			}
		}
	}
	return a.store.PublicURL(key), nil
}
