package app

import (
	"net/url"
	"strings"
	"time"
)

// Notification is an S3-compatible bucket notification. MinIO publishes one
// per event to the AMQP target; a notification may batch several records.
type Notification struct {
	Records []Record `json:"Records"`
}

// Record describes a single object-created event.
type Record struct {
	EventName string    `json:"eventName"`
	EventTime time.Time `json:"eventTime"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key  string `json:"key"`
			Size int64  `json:"size"`
		} `json:"object"`
	} `json:"s3"`
}

// decodeKey undoes the URL encoding notification keys arrive with.
// QueryUnescape also maps "+" to a space, matching form-encoded uploads.
func decodeKey(raw string) string {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// isFolderMarker reports whether the object is a zero-byte directory
// placeholder rather than real content.
func isFolderMarker(key string, size int64) bool {
	return size == 0 && strings.HasSuffix(key, "/")
}

// friendlyName turns filename artifacts into a displayable title.
func friendlyName(base string) string {
	name := strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.Join(strings.Fields(name), " ")
}
