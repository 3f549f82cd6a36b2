package xid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New returns prefix-<uuid v7>, which sorts by creation time.
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), uuid.NewString())
	}
	return prefix + "-" + id.String()
}
