package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"

	"github.com/bassista/tankwatch/internal/logger"
	"github.com/bassista/tankwatch/internal/model"
)

// Document is the persisted profile configuration: every known tank profile
// plus the stores the operator has hidden from polling.
type Document struct {
	Profiles     []model.TankProfile `json:"profiles" validate:"required,dive"`
	HiddenStores []string            `json:"hiddenStores"`
}

// Store loads and serves tank profiles from a JSON document, reloading it
// when the file changes on disk. Profile invariants are enforced at load
// time; an invalid document never replaces the last good one.
type Store struct {
	path      string
	dir       string
	base      string
	validator *validator.Validate

	mu       sync.RWMutex
	profiles map[string]model.TankProfile // keyed storeID|tankID
	byStore  map[string][]string          // tank IDs per store
	hidden   map[string]bool
}

// NewStore creates a profile store for the given document path and performs
// the initial load.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("profile document path is required")
	}

	s := &Store{
		path:      path,
		dir:       filepath.Dir(path),
		base:      filepath.Base(path),
		validator: validator.New(),
		profiles:  map[string]model.TankProfile{},
		byStore:   map[string][]string{},
		hidden:    map[string]bool{},
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads, validates and indexes the profile document. On any error the
// previously loaded document stays authoritative.
func (s *Store) Load() error {
	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open profile document: %w", err)
	}
	defer file.Close()

	var doc Document
	if err := json.NewDecoder(file).Decode(&doc); err != nil {
		return fmt.Errorf("decode profile document: %w", err)
	}

	if err := s.validator.Struct(&doc); err != nil {
		return fmt.Errorf("validate profile document: %w", err)
	}
	for _, p := range doc.Profiles {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("validate profile document: %w", err)
		}
	}

	profiles := make(map[string]model.TankProfile, len(doc.Profiles))
	byStore := map[string][]string{}
	for _, p := range doc.Profiles {
		profiles[profileKey(p.StoreID, p.TankID)] = p
		byStore[p.StoreID] = append(byStore[p.StoreID], p.TankID)
	}
	hidden := make(map[string]bool, len(doc.HiddenStores))
	for _, id := range doc.HiddenStores {
		hidden[id] = true
	}

	s.mu.Lock()
	s.profiles = profiles
	s.byStore = byStore
	s.hidden = hidden
	s.mu.Unlock()

	logger.WithComponent("profile").Infof("loaded %d tank profiles across %d stores (%d hidden)",
		len(profiles), len(byStore), len(hidden))
	return nil
}

// GetTankProfile returns the profile for one tank.
func (s *Store) GetTankProfile(storeID, tankID string) (model.TankProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileKey(storeID, tankID)]
	return p, ok
}

// ListVisibleStores returns the stores that have profiles and are not hidden,
// sorted for stable iteration order.
func (s *Store) ListVisibleStores() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.byStore))
	for id := range s.byStore {
		if !s.hidden[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// IsVisible reports whether a store should be polled at all.
func (s *Store) IsVisible(storeID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, known := s.byStore[storeID]
	return known && !s.hidden[storeID]
}

// StartWatcher reloads the document when it changes on disk. It watches the
// parent directory so atomic replace sequences (temp file + rename) are still
// observed, and debounces bursty events into a single reload.
func (s *Store) StartWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir: %w", err)
	}

	go func() {
		defer watcher.Close()

		var debounce *time.Timer
		schedule := func() {
			if debounce != nil {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
			}
			debounce = time.AfterFunc(200*time.Millisecond, func() {
				if err := s.Load(); err != nil {
					logger.WithComponent("profile").Warnf("profile reload failed, keeping previous document: %v", err)
				}
			})
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != s.base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod|fsnotify.Remove|fsnotify.Rename) != 0 {
					schedule()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithComponent("profile").Errorf("watcher error: %v", err)
			}
		}
	}()

	return nil
}

func profileKey(storeID, tankID string) string {
	return storeID + "|" + tankID
}
