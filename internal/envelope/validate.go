// ABOUTME: Attachment validation against the MIME allow-list and size cap
// ABOUTME: A single invalid attachment rejects the whole activity

package envelope

import "fmt"

// MaxAttachmentBytes is the default per-attachment size cap (512 KiB).
const MaxAttachmentBytes = 512 * 1024

// DefaultAllowedMime is the default attachment MIME allow-list.
var DefaultAllowedMime = []string{
	"text/plain",
	"text/markdown",
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
	"application/pdf",
	"application/json",
	"audio/mpeg",
	"video/mp4",
}

// ValidationError reports a malformed activity or an attachment that
// violates the allow-list or size limit. Attachment names the offending
// attachment when one is at fault.
type ValidationError struct {
	Attachment string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.Attachment == "" {
		return "invalid activity: " + e.Reason
	}
	return fmt.Sprintf("invalid attachment %q: %s", e.Attachment, e.Reason)
}

// Limits holds the attachment constraints enforced at append time.
type Limits struct {
	MaxBytes    int64
	allowedMime map[string]struct{}
}

// NewLimits builds Limits from configuration values. Zero maxBytes and a
// nil allow-list fall back to the defaults.
func NewLimits(maxBytes int64, allowedMime []string) Limits {
	if maxBytes <= 0 {
		maxBytes = MaxAttachmentBytes
	}
	if len(allowedMime) == 0 {
		allowedMime = DefaultAllowedMime
	}
	allowed := make(map[string]struct{}, len(allowedMime))
	for _, m := range allowedMime {
		allowed[m] = struct{}{}
	}
	return Limits{MaxBytes: maxBytes, allowedMime: allowed}
}

// ValidateActivity checks the activity shape and every attachment. It
// returns a *ValidationError on the first violation; callers must not have
// mutated any state before calling.
func (l Limits) ValidateActivity(a *Activity) error {
	if a == nil {
		return &ValidationError{Reason: "activity is required"}
	}
	if a.Type == "" {
		return &ValidationError{Reason: "type is required"}
	}
	for i, att := range a.Attachments {
		name := att.Name
		if name == "" {
			name = fmt.Sprintf("attachment[%d]", i)
		}
		if att.MimeType == "" {
			return &ValidationError{Attachment: name, Reason: "mimeType is required"}
		}
		if _, ok := l.allowedMime[att.MimeType]; !ok {
			return &ValidationError{Attachment: name, Reason: fmt.Sprintf("mime type %q not allowed", att.MimeType)}
		}
		if att.SizeBytes < 0 {
			return &ValidationError{Attachment: name, Reason: "negative size"}
		}
		if att.SizeBytes > l.MaxBytes {
			return &ValidationError{Attachment: name, Reason: fmt.Sprintf("size %d exceeds limit %d", att.SizeBytes, l.MaxBytes)}
		}
	}
	return nil
}
