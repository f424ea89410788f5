// Package targets reads the ordered list of place-review URLs driving a run.
package targets

import (
	"fmt"
	"os"
	"strings"
)

// Load reads one URL per line, skipping blank lines and # comments.
// Order is preserved; it determines output sequence only.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read target list at '%s': %w", path, err)
	}

	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("target list '%s' contains no URLs", path)
	}
	return urls, nil
}
