package cfgfile

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/framegraph/framegraph/internal/apperr"
)

// ResolvePromptPath resolves a prompt path in priority order: absolute,
// tilde-expanded, relative-to-cwd, or relative to baseDir (the CLI passes
// the tool's config directory unless --prompt-base overrides it).
func ResolvePromptPath(path, baseDir string) (string, error) {
	switch {
	case strings.HasPrefix(path, "/"):
		return path, nil
	case strings.HasPrefix(path, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", apperr.Wrap(apperr.CodeConfigError, "HOME not set", err)
		}
		return filepath.Join(home, path[2:]), nil
	case strings.HasPrefix(path, "./"):
		cwd, err := os.Getwd()
		if err != nil {
			return "", apperr.Wrap(apperr.CodeConfigError, "failed to get current directory", err)
		}
		return filepath.Join(cwd, path[2:]), nil
	default:
		return filepath.Join(baseDir, path), nil
	}
}

// PromptCache loads prompt file contents, re-reading only when a file's
// modification time has changed since it was last cached.
type PromptCache struct {
	mu    sync.Mutex
	cache map[string]cachedPrompt
}

type cachedPrompt struct {
	content string
	mtime   time.Time
}

// NewPromptCache builds an empty PromptCache.
func NewPromptCache() *PromptCache {
	return &PromptCache{cache: make(map[string]cachedPrompt)}
}

// Load reads path, serving a cached copy if its mtime is unchanged.
// Rejects an all-whitespace file as a configuration error.
func (c *PromptCache) Load(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeConfigError, "failed to read prompt file "+path, err)
	}
	mtime := info.ModTime()

	c.mu.Lock()
	if cached, ok := c.cache[path]; ok && cached.mtime.Equal(mtime) {
		c.mu.Unlock()
		return cached.content, nil
	}
	c.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeConfigError, "failed to read prompt file "+path, err)
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return "", apperr.New(apperr.CodeConfigError, "prompt file "+path+" is empty")
	}

	c.mu.Lock()
	c.cache[path] = cachedPrompt{content: content, mtime: mtime}
	c.mu.Unlock()

	return content, nil
}
