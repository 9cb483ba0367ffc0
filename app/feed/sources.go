package feed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type sourcesFile struct {
	Feeds []Source `yaml:"feeds"`
}

// LoadSources reads the feed source list from a YAML file. The file is
// required configuration: a missing or invalid file is a fatal error, not a
// quiet empty run.
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds file: %w", err)
	}

	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse feeds file: %w", err)
	}

	if len(f.Feeds) == 0 {
		return nil, fmt.Errorf("feeds file %s lists no feeds", path)
	}

	for i := range f.Feeds {
		if f.Feeds[i].URL == "" {
			return nil, fmt.Errorf("feed at index %d has no url", i)
		}
		if f.Feeds[i].Name == "" {
			f.Feeds[i].Name = f.Feeds[i].URL
		}
	}

	return f.Feeds, nil
}
