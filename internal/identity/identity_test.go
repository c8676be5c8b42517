package identity

import (
	"strings"
	"testing"
	"time"
)

func TestSafeKey(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"a@x.com", "a-x-com"},
		{"first.last@mail.example.org", "first-last-mail-example-org"},
		{"no-special", "no-special"},
		{"", ""},
		{"..@@", "----"},
	}
	for _, tt := range tests {
		if got := SafeKey(tt.email); got != tt.want {
			t.Errorf("SafeKey(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}

func TestSafeKeyIdempotent(t *testing.T) {
	for _, email := range []string{"a@x.com", "b.c.d@y.co.uk", "plain", "x@y@z..w"} {
		once := SafeKey(email)
		if strings.ContainsAny(once, ".@") {
			t.Fatalf("SafeKey(%q) = %q still contains . or @", email, once)
		}
		if twice := SafeKey(once); twice != once {
			t.Fatalf("SafeKey not idempotent for %q: %q != %q", email, twice, once)
		}
	}
}

// Distinct emails can share a key; records for both land on the same node.
func TestSafeKeyCollision(t *testing.T) {
	if SafeKey("a.b@c") != SafeKey("a-b@c") {
		t.Fatal("expected a.b@c and a-b@c to collide")
	}
}

func TestMessageID(t *testing.T) {
	sent := time.Date(2020, time.December, 24, 10, 15, 30, 0, time.UTC)
	got := MessageID("b@y.com", "a@x.com", sent)
	want := "b@y.com_a-x-com_Dec 24, 2020 at 10:15:30 AM UTC"
	if got != want {
		t.Fatalf("MessageID = %q, want %q", got, want)
	}
}

func TestDateRoundTrip(t *testing.T) {
	sent := time.Date(2021, time.March, 3, 21, 4, 5, 0, time.UTC)
	got, err := ParseDate(FormatDate(sent))
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if !got.Equal(sent) {
		t.Fatalf("ParseDate(FormatDate(t)) = %v, want %v", got, sent)
	}
	if _, err := ParseDate("yesterday"); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestFileNames(t *testing.T) {
	if got := ProfilePictureFileName("a.b@x.com"); got != "a-b-x-com_profile_picture.png" {
		t.Errorf("ProfilePictureFileName = %q", got)
	}
	id := "b@y.com_a-x-com_Dec 24, 2020 at 10:15:30 AM UTC"
	if got := PhotoMessageFileName(id); got != "photo_message_b@y.com_a-x-com_Dec-24,-2020-at-10:15:30-AM-UTC.png" {
		t.Errorf("PhotoMessageFileName = %q", got)
	}
	if got := VideoMessageFileName(id); !strings.HasPrefix(got, "video_message_") || !strings.HasSuffix(got, ".mov") || strings.Contains(got, " ") {
		t.Errorf("VideoMessageFileName = %q", got)
	}
}
