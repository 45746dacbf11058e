package post

import (
	"strings"

	"github.com/matzehuels/mosaic/pkg/errors"
)

// Hashtags is an ordered, non-empty list of tags without the leading '#'.
type Hashtags []string

// ParseHashtags normalizes and validates tags. A leading '#' and surrounding
// whitespace are stripped and duplicates removed, keeping first occurrence.
func ParseHashtags(raw []string) (Hashtags, error) {
	seen := make(map[string]bool, len(raw))
	out := make(Hashtags, 0, len(raw))
	for _, r := range raw {
		tag := strings.TrimPrefix(strings.TrimSpace(r), "#")
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	if err := errors.ValidateHashtags(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Cycle returns an iterator over the tags that wraps around forever.
func (h Hashtags) Cycle() *Cycle {
	return &Cycle{tags: h}
}

// Clone returns a copy that does not share the backing array.
func (h Hashtags) Clone() Hashtags {
	return append(Hashtags(nil), h...)
}

// Cycle yields hashtags round-robin. It is not safe for concurrent use.
type Cycle struct {
	tags Hashtags
	next int
}

// Next returns the next tag. It panics on an empty list.
func (c *Cycle) Next() string {
	tag := c.tags[c.next]
	c.next = (c.next + 1) % len(c.tags)
	return tag
}
