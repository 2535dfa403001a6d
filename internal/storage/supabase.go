package storage

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/supabase-community/supabase-go"
)

// Supabase hosts synthesized audio blobs in a public Storage bucket.
type Supabase struct {
	client  *supabase.Client
	baseURL string
	bucket  string
}

// NewSupabase constructs a storage client for the given project.
func NewSupabase(baseURL, serviceKey, bucket string) (*Supabase, error) {
	client, err := supabase.NewClient(baseURL, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Supabase{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
	}, nil
}

// UploadAudio stores an audio blob and returns its public URL. The
// bucket must be public for the returned URL to be playable.
func (s *Supabase) UploadAudio(key string, data []byte) (string, error) {
	_, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("upload to supabase: %w", err)
	}
	return s.PublicURL(key), nil
}

// PublicURL builds the public object URL for a stored key.
func (s *Supabase) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key)
}
