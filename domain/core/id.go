package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Key addresses a model, a metrics record or a frame
type Key string

// NewKey creates a new unique key using UUID v7 for time-ordered generation
func NewKey() Key {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Key(id.String())
}

// NewPrefixedKey creates a key of the form "<prefix>_<uuid>", e.g. "glm_0190..."
func NewPrefixedKey(prefix string) Key {
	if prefix == "" {
		return NewKey()
	}
	return Key(prefix + "_" + string(NewKey()))
}

// ParseKey validates a user supplied key
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.ContainsAny(s, " \t\n/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return Key(s), nil
}

// String returns the string representation
func (k Key) String() string {
	return string(k)
}

// IsEmpty checks if the key is empty
func (k Key) IsEmpty() bool {
	return k == ""
}
