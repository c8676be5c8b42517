package models

import (
	"fmt"
	"strconv"
	"strings"
)

// MessageKind is the discriminator stored in a message record's "type" field
type MessageKind string

const (
	KindText           MessageKind = "text"
	KindAttributedText MessageKind = "attributed_text"
	KindPhoto          MessageKind = "photo"
	KindVideo          MessageKind = "video"
	KindLocation       MessageKind = "location"
	KindEmoji          MessageKind = "emoji"
	KindAudio          MessageKind = "audio"
	KindContact        MessageKind = "contact"
	KindLinkPreview    MessageKind = "link_preview"
	KindCustom         MessageKind = "custom"
)

var knownKinds = map[MessageKind]struct{}{
	KindText:           {},
	KindAttributedText: {},
	KindPhoto:          {},
	KindVideo:          {},
	KindLocation:       {},
	KindEmoji:          {},
	KindAudio:          {},
	KindContact:        {},
	KindLinkPreview:    {},
	KindCustom:         {},
}

// ParseMessageKind maps a stored discriminator back to its kind
func ParseMessageKind(s string) (MessageKind, error) {
	k := MessageKind(s)
	if _, ok := knownKinds[k]; !ok {
		return "", fmt.Errorf("unknown message kind %q: %w", s, ErrDecodeFailed)
	}
	return k, nil
}

// IsMedia reports whether the kind references a blob
func (k MessageKind) IsMedia() bool {
	return k == KindPhoto || k == KindVideo
}

// DefaultMediaSize is the display size given to decoded photo and video messages
var DefaultMediaSize = Size{Width: 300, Height: 300}

// Size is a display size in points
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Media references an uploaded photo or video
type Media struct {
	URL              string `json:"url"`
	PlaceholderImage string `json:"placeholder_image,omitempty"`
	Size             Size   `json:"size"`
}

// Location is a shared map coordinate
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// String encodes the location as "longitude,latitude"
func (l Location) String() string {
	return strconv.FormatFloat(l.Longitude, 'f', -1, 64) + "," + strconv.FormatFloat(l.Latitude, 'f', -1, 64)
}

// ParseLocation decodes a "longitude,latitude" string
func ParseLocation(s string) (*Location, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed location %q: %w", s, ErrDecodeFailed)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("malformed longitude %q: %w", parts[0], ErrDecodeFailed)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("malformed latitude %q: %w", parts[1], ErrDecodeFailed)
	}
	return &Location{Latitude: lat, Longitude: lon}, nil
}
