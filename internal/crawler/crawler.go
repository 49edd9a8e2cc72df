package crawler

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

// Crawler scans a directory tree for Java sources.
type Crawler struct {
	ignored []string
}

// NewCrawler creates a new crawler instance.
func NewCrawler() *Crawler {
	return &Crawler{
		ignored: []string{".git", "build", "target", "out", "node_modules", "testdata"},
	}
}

// WithIgnored replaces the directory names skipped during the walk.
func (c *Crawler) WithIgnored(names ...string) *Crawler {
	c.ignored = names
	return c
}

// ListFiles returns every .java file under root, sorted.
func (c *Crawler) ListFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && slices.Contains(c.ignored, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".java") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(out)
	return out, nil
}
