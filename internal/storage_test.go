package internal

import "testing"

func TestNewSupabaseStoreDisabledWithoutSettings(t *testing.T) {
	if store := NewSupabaseStore(StorageConfig{URL: "https://project.supabase.co", Bucket: "journals"}); store != nil {
		t.Fatalf("store without a key must be disabled")
	}
	store := NewSupabaseStore(StorageConfig{URL: "https://project.supabase.co/", Key: "k", Bucket: "journals"})
	if store == nil || store.bucket != "journals" {
		t.Fatalf("expected a configured store, got %+v", store)
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"out.pdf":  "application/pdf",
		"OUT.DOCX": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"out.bin":  "application/octet-stream",
	}
	for path, want := range tests {
		if got := contentTypeFor(path); got != want {
			t.Errorf("contentTypeFor(%s) = %s, want %s", path, got, want)
		}
	}
}
