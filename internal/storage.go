package internal

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
)

// ArtifactStore mirrors a converted output somewhere durable and returns its URL
type ArtifactStore interface {
	Put(ctx context.Context, name, path string) (string, error)
}

// SupabaseStore uploads outputs to a Supabase Storage bucket
type SupabaseStore struct {
	client *storage_go.Client
	bucket string
}

// NewSupabaseStore returns nil when storage is not configured
func NewSupabaseStore(cfg StorageConfig) *SupabaseStore {
	if !cfg.Enabled() {
		return nil
	}
	endpoint := strings.TrimRight(cfg.URL, "/") + "/storage/v1"
	return &SupabaseStore{
		client: storage_go.NewClient(endpoint, cfg.Key, nil),
		bucket: cfg.Bucket,
	}
}

func (s *SupabaseStore) Put(ctx context.Context, name, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	contentType := contentTypeFor(path)
	upsert := true
	if _, err := s.client.UploadFile(s.bucket, name, f, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}); err != nil {
		return "", fmt.Errorf("uploading %s to bucket %s: %w", name, s.bucket, err)
	}

	public := s.client.GetPublicUrl(s.bucket, name)
	log.Printf("[STORAGE] Mirrored %s to %s", name, s.bucket)
	return public.SignedURL, nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
