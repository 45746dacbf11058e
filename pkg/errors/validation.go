package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxHashtags bounds how many hashtags a single worker may follow.
const MaxHashtags = 32

// hashtagRegex accepts letters, digits and underscores in any script.
var hashtagRegex = regexp.MustCompile(`^[\p{L}\p{N}_]+$`)

// ValidateHashtag validates a single hashtag without its leading '#'.
//
// The validation rules are intentionally conservative:
//   - No empty tags
//   - Maximum length of 100 characters
//   - Only letters, digits and underscores
func ValidateHashtag(tag string) error {
	if tag == "" {
		return New(ErrCodeInvalidHashtag, "hashtag cannot be empty")
	}
	if len(tag) > 100 {
		return New(ErrCodeInvalidHashtag, "hashtag too long (max 100 characters)")
	}
	if !hashtagRegex.MatchString(tag) {
		return New(ErrCodeInvalidHashtag, "invalid hashtag: %q", tag)
	}
	return nil
}

// ValidateHashtags validates a non-empty hashtag list.
func ValidateHashtags(tags []string) error {
	if len(tags) == 0 {
		return New(ErrCodeInvalidHashtag, "at least one hashtag is required")
	}
	if len(tags) > MaxHashtags {
		return New(ErrCodeInvalidHashtag, "too many hashtags (max %d)", MaxHashtags)
	}
	for _, tag := range tags {
		if err := ValidateHashtag(tag); err != nil {
			return err
		}
	}
	return nil
}

// ValidateUserName validates the display name attached to a post.
func ValidateUserName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "user name cannot be empty")
	}
	if len(name) > 256 {
		return New(ErrCodeInvalidInput, "user name too long (max 256 characters)")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "user name contains invalid control characters")
		}
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
