package instance

import (
	"fmt"
	"os"
	"strings"
)

// GetID returns the process identifier used in worker logs and lock owners.
// KIRANA_INSTANCE_ID wins, then the hostname, then "<kind>-0".
func GetID(kind string) string {
	if id := strings.TrimSpace(os.Getenv("KIRANA_INSTANCE_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return fmt.Sprintf("%s-%s", kind, host)
	}
	return kind + "-0"
}
