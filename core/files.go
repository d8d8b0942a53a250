package core

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrFileNotFound = NewError(KindNotFound, "file not found")

type (
	// File is the metadata of a stored attachment. The content lives in a FileStorage under Key.
	File struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		ContentType string    `json:"contentType"`
		Size        int64     `json:"size"`
		SHA256      string    `json:"sha256"`
		Key         string    `json:"-"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	// Upload is a file received from a client, not stored yet.
	Upload struct {
		Name        string
		ContentType string
		Reader      io.Reader
	}

	// FileChanges describes the target set of attachments of a record.
	// When Keep is set, every current file not listed is removed; otherwise only the Remove ids are.
	// Unknown Remove ids are ignored so that retrying the same changes is harmless.
	FileChanges struct {
		Keep   []string
		Remove []string
		Add    []Upload
	}

	// FileStorage is any service that can store file contents.
	FileStorage interface {
		// Save writes the content of r under key, returning its size and hex encoded sha256.
		Save(ctx context.Context, key string, r io.Reader) (int64, string, error)
		Open(ctx context.Context, key string) (io.ReadCloser, error)
		Delete(ctx context.Context, key string) error
		// SignedURL returns a short-lived URL serving the content under key as `name`.
		SignedURL(ctx context.Context, key, name string) (string, error)
		// Verify validates a token issued by SignedURL and returns the key and name it grants access to.
		Verify(token string) (string, string, error)
	}
)

func (fc FileChanges) IsEmpty() bool {
	return fc.Keep == nil && len(fc.Remove) == 0 && len(fc.Add) == 0
}

// Split partitions current into the files to keep and the ones to remove.
func (fc FileChanges) Split(current []File) ([]File, []File, error) {
	byID := make(map[string]File, len(current))
	for _, f := range current {
		byID[f.ID] = f
	}

	drop := make(map[string]bool, len(current))
	if fc.Keep != nil {
		keep := make(map[string]bool, len(fc.Keep))
		for _, id := range fc.Keep {
			if _, ok := byID[id]; !ok {
				return nil, nil, NewFieldError("keep", fmt.Sprintf("unknown file %q", id))
			}
			keep[id] = true
		}
		for _, f := range current {
			if !keep[f.ID] {
				drop[f.ID] = true
			}
		}
	}
	for _, id := range fc.Remove {
		if _, ok := byID[id]; ok {
			drop[id] = true
		}
	}

	kept := make([]File, 0, len(current))
	removed := make([]File, 0, len(drop))
	for _, f := range current {
		if drop[f.ID] {
			removed = append(removed, f)
		} else {
			kept = append(kept, f)
		}
	}
	return kept, removed, nil
}

// StoreUploads saves uploads under prefix. Already saved files are deleted if any of them fails.
func StoreUploads(ctx context.Context, storage FileStorage, prefix string, uploads []Upload) ([]File, error) {
	files := make([]File, 0, len(uploads))
	for _, up := range uploads {
		id := uuid.New().String()
		key := path.Join(prefix, id)
		size, sum, err := storage.Save(ctx, key, up.Reader)
		if err != nil {
			DiscardFiles(ctx, storage, files, nil)
			return nil, errors.Wrapf(err, "saving file %q", up.Name)
		}
		files = append(files, File{
			ID:          id,
			Name:        up.Name,
			ContentType: up.ContentType,
			Size:        size,
			SHA256:      sum,
			Key:         key,
			CreatedAt:   time.Now().UTC(),
		})
	}
	return files, nil
}

// DiscardFiles deletes the contents of files, logging failures when a logger is given.
func DiscardFiles(ctx context.Context, storage FileStorage, files []File, logger Logger) {
	for _, f := range files {
		if err := storage.Delete(ctx, f.Key); err != nil && logger != nil {
			logger.Warn(fmt.Sprintf("could not delete file %q", f.Key), err)
		}
	}
}

func FindFile(files []File, id string) (File, error) {
	for _, f := range files {
		if f.ID == id {
			return f, nil
		}
	}
	return File{}, ErrFileNotFound
}

// UpdateFiles stores the uploads of fc, then calls update with the IDs of the files to drop from current
// and the newly stored files. New contents are deleted when update fails, dropped ones after it succeeded.
func UpdateFiles(
	ctx context.Context, storage FileStorage, logger Logger, prefix string, current []File, fc FileChanges,
	update func(removed []string, added []File) error,
) error {
	_, removed, err := fc.Split(current)
	if err != nil {
		return err
	}
	added, err := StoreUploads(ctx, storage, prefix, fc.Add)
	if err != nil {
		return err
	}

	removedIDs := make([]string, 0, len(removed))
	for _, f := range removed {
		removedIDs = append(removedIDs, f.ID)
	}
	if err = update(removedIDs, added); err != nil {
		DiscardFiles(ctx, storage, added, logger)
		return err
	}
	DiscardFiles(ctx, storage, removed, logger)
	return nil
}
