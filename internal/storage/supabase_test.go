package storage

import "testing"

func TestPublicURL(t *testing.T) {
	s, err := NewSupabase("https://proj.supabase.co/", "service-key", "debate-audio")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := s.PublicURL("reply_1.wav")
	want := "https://proj.supabase.co/storage/v1/object/public/debate-audio/reply_1.wav"
	if got != want {
		t.Fatalf("PublicURL = %q, want %q", got, want)
	}
}
