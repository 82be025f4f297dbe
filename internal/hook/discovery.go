package hook

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/piaoger/fisher/internal/provider"
)

// headerRe matches provider and settings declarations in script headers:
//
//	## Fisher-Standalone: {"secret": "hi"}
//	## Fisher-Hook: {"priority": 10, "parallel": false}
var headerRe = regexp.MustCompile(`^##\s*Fisher-([A-Za-z]+):\s*(.+)$`)

// settingsHeader is the pseudo-provider name carrying hook-level scheduling
// settings.
const settingsHeader = "Hook"

type hookSettings struct {
	Priority int   `json:"priority"`
	Parallel *bool `json:"parallel"`
}

// Collect scans a directory for hook scripts. Only files that are both
// readable and executable are collected; everything else is skipped
// silently. Subdirectories are descended into only when recursive is set,
// and hooks found there keep the relative path as their name.
func Collect(dir string, recursive bool) ([]*Hook, error) {
	base, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving hooks directory: %w", err)
	}

	var hooks []*Hook
	dirs := []string{base}

	for len(dirs) > 0 {
		current := dirs[0]
		dirs = dirs[1:]

		entries, err := os.ReadDir(current)
		if err != nil {
			return nil, fmt.Errorf("reading hooks directory: %w", err)
		}

		for _, entry := range entries {
			path := filepath.Join(current, entry.Name())

			if entry.IsDir() {
				if recursive {
					dirs = append(dirs, path)
				}
				continue
			}
			if strings.HasPrefix(entry.Name(), ".") {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				return nil, fmt.Errorf("inspecting %s: %w", path, err)
			}
			mode := info.Mode().Perm()
			if mode&0o111 == 0 || mode&0o444 == 0 {
				// Not executable or not readable: not a hook.
				continue
			}

			name, err := filepath.Rel(base, path)
			if err != nil {
				name = entry.Name()
			}

			h, err := load(name, path)
			if err != nil {
				return nil, fmt.Errorf("loading hook %s: %w", name, err)
			}
			hooks = append(hooks, h)
		}
	}

	return hooks, nil
}

// load parses a single hook script's headers into a Hook definition.
func load(name, path string) (*Hook, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	h := &Hook{
		Name:     name,
		Exec:     path,
		Parallel: true,
	}

	scanner := bufio.NewScanner(file)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if first {
			first = false
			if strings.HasPrefix(line, "#!") {
				continue
			}
		}
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "#") {
			// Headers only live at the top of the script.
			break
		}

		match := headerRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		headerName, raw := match[1], []byte(match[2])
		if headerName == settingsHeader {
			settings := hookSettings{}
			if err := json.Unmarshal(raw, &settings); err != nil {
				return nil, fmt.Errorf("parsing Fisher-Hook header: %w", err)
			}
			h.Priority = settings.Priority
			if settings.Parallel != nil {
				h.Parallel = *settings.Parallel
			}
			continue
		}

		cfg, err := provider.ParseConfig(headerName, raw)
		if err != nil {
			return nil, err
		}
		h.Providers = append(h.Providers, cfg)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(h.Providers) == 0 {
		return nil, fmt.Errorf("no provider declared in %s", name)
	}

	log.Debug().
		Str("hook", h.Name).
		Int("priority", h.Priority).
		Bool("parallel", h.Parallel).
		Int("providers", len(h.Providers)).
		Msg("Hook loaded")

	return h, nil
}
