package utils

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	// Counter for per-process oracle call labels
	callCounter uint64

	unsafeLabelChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)
)

// NewCampaignID generates a campaign ID
func NewCampaignID() string {
	return uuid.New().String()
}

// ShortID returns the first block of a UUID-style ID, for file names and log prefixes
func ShortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// CallLabel builds a unique, filesystem-safe label for one oracle call
func CallLabel(parts ...string) string {
	count := atomic.AddUint64(&callCounter, 1)
	joined := SanitizeLabel(strings.Join(parts, "_"))
	if joined == "" {
		return fmt.Sprintf("call%04d", count)
	}
	return fmt.Sprintf("%s_%04d", joined, count)
}

// SanitizeLabel maps a label onto [A-Za-z0-9_.-] with no ".." sequence so it
// can be embedded in file names and tool scripts
func SanitizeLabel(label string) string {
	label = unsafeLabelChars.ReplaceAllString(label, "-")
	for strings.Contains(label, "..") {
		label = strings.ReplaceAll(label, "..", ".")
	}
	return label
}
