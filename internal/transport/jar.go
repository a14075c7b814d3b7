package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/fittedhq/fitted-go/internal/log"
	"golang.org/x/net/publicsuffix"
)

// MemoryJar is an in-process cookie jar. Credentials vanish when the
// process exits, which is what tests want.
type MemoryJar struct {
	mu  sync.Mutex
	jar *cookiejar.Jar
}

var _ Jar = (*MemoryJar)(nil)

// NewMemoryJar creates an empty in-memory jar
func NewMemoryJar() (*MemoryJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &MemoryJar{jar: jar}, nil
}

func (j *MemoryJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
}

func (j *MemoryJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

func (j *MemoryJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("resetting cookie jar: %w", err)
	}
	j.jar = jar
	return nil
}

// persistedCookie is the on-disk shape of one cookie. Only name and value
// survive a round trip through the jar; persistence is best effort, the
// server re-issues cookies on refresh anyway.
type persistedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	SavedAt time.Time `json:"savedAt"`
}

// FileJar persists cookies for a single backend host to a file between
// runs, the CLI analog of the browser keeping session cookies across page
// loads.
type FileJar struct {
	mu   sync.Mutex
	jar  *cookiejar.Jar
	path string
	base *url.URL
}

var _ Jar = (*FileJar)(nil)

// NewFileJar loads any previously persisted cookies for base from path
func NewFileJar(path string, base *url.URL) (*FileJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	j := &FileJar{jar: jar, path: path, base: base}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cookie file: %w", err)
	}

	var persisted []persistedCookie
	if err := json.Unmarshal(data, &persisted); err != nil {
		// A corrupt cookie file just means logging in again
		log.LogWarnWithFields("transport", "Discarding unreadable cookie file", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		return j, nil
	}

	cookies := make([]*http.Cookie, 0, len(persisted))
	for _, c := range persisted {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	jar.SetCookies(base, cookies)

	return j, nil
}

func (j *FileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)
	j.persistLocked()
}

func (j *FileJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

func (j *FileJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("resetting cookie jar: %w", err)
	}
	j.jar = jar

	if err := os.Remove(j.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing cookie file: %w", err)
	}
	return nil
}

func (j *FileJar) persistLocked() {
	now := time.Now()
	current := j.jar.Cookies(j.base)

	persisted := make([]persistedCookie, 0, len(current))
	for _, c := range current {
		persisted = append(persisted, persistedCookie{Name: c.Name, Value: c.Value, SavedAt: now})
	}

	data, err := json.Marshal(persisted)
	if err != nil {
		log.LogError("Failed to encode cookies for persistence: %v", err)
		return
	}

	if err := os.WriteFile(j.path, data, 0o600); err != nil {
		log.LogWarnWithFields("transport", "Failed to persist cookies", map[string]any{
			"path":  j.path,
			"error": err.Error(),
		})
	}
}
