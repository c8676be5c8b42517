// Package identity derives storage keys, message IDs and blob file names
// from user email addresses.
package identity

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the medium-date, long-time layout used in message IDs and
// stored message dates, e.g. "Dec 24, 2020 at 10:15:30 AM UTC".
const DateLayout = "Jan 2, 2006 at 3:04:05 PM MST"

var safeKeyReplacer = strings.NewReplacer(".", "-", "@", "-")

// SafeKey replaces every "." and "@" in email with "-".
//
// The mapping is not injective: "a.b@c" and "a-b@c" share a key.
func SafeKey(email string) string {
	return safeKeyReplacer.Replace(email)
}

// FormatDate renders t with DateLayout
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a date produced by FormatDate
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	return t, nil
}

// MessageID builds "<otherUserEmail>_<safeCurrentUserEmail>_<date>".
// IDs are not unique for two sends between the same users within one second.
func MessageID(otherUserEmail, currentUserEmail string, sentAt time.Time) string {
	return fmt.Sprintf("%s_%s_%s", otherUserEmail, SafeKey(currentUserEmail), FormatDate(sentAt))
}

// ProfilePictureFileName returns "<safeEmail>_profile_picture.png"
func ProfilePictureFileName(email string) string {
	return SafeKey(email) + "_profile_picture.png"
}

// PhotoMessageFileName returns "photo_message_<messageID>.png" with spaces replaced by "-"
func PhotoMessageFileName(messageID string) string {
	return "photo_message_" + sanitizeFileName(messageID) + ".png"
}

// VideoMessageFileName returns "video_message_<messageID>.mov" with spaces replaced by "-"
func VideoMessageFileName(messageID string) string {
	return "video_message_" + sanitizeFileName(messageID) + ".mov"
}

func sanitizeFileName(s string) string {
	return strings.ReplaceAll(s, " ", "-")
}
