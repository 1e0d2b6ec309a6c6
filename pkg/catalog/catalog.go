// Package catalog provides template lookup. Templates are immutable
// descriptors loaded once; the pipeline borrows them read-only for the
// duration of a job.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/huynhanhkhoa2895/face-swap/pkg/logging"
	"github.com/huynhanhkhoa2895/face-swap/pkg/models"
)

// ErrTemplateNotFound is returned when a template id is unknown
var ErrTemplateNotFound = errors.New("template not found")

// Filter narrows List results; zero values match everything
type Filter struct {
	Character string
	Gender    string
}

// Catalog resolves template descriptors by id
type Catalog interface {
	Lookup(id string) (*models.Template, error)
	List(filter Filter) []*models.Template
}

// FileCatalog loads YAML template descriptors from a directory.
// Relative video/audio/thumbnail paths in a descriptor are resolved
// against the directory holding it.
type FileCatalog struct {
	dir       string
	templates map[string]*models.Template
	order     []string
	log       *logging.Logger
}

// NewFileCatalog reads every *.yaml/*.yml descriptor under dir
func NewFileCatalog(dir string, log *logging.Logger) (*FileCatalog, error) {
	if log == nil {
		log = logging.New(logging.INFO, false)
	}
	c := &FileCatalog{
		dir:       dir,
		templates: make(map[string]*models.Template),
		log:       log.WithComponent("catalog"),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *FileCatalog) load() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read template directory %s: %w", c.dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(c.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read template descriptor %s: %w", path, err)
		}

		var tmpl models.Template
		if err := yaml.Unmarshal(data, &tmpl); err != nil {
			return fmt.Errorf("parse template descriptor %s: %w", path, err)
		}
		if err := tmpl.Validate(); err != nil {
			return fmt.Errorf("invalid template descriptor %s: %w", path, err)
		}
		if _, dup := c.templates[tmpl.ID]; dup {
			return fmt.Errorf("duplicate template id %q in %s", tmpl.ID, path)
		}

		c.resolvePaths(&tmpl)
		c.templates[tmpl.ID] = &tmpl
		c.order = append(c.order, tmpl.ID)
	}

	c.log.Info("loaded %d templates from %s", len(c.templates), c.dir)
	return nil
}

func (c *FileCatalog) resolvePaths(t *models.Template) {
	t.VideoPath = c.resolve(t.VideoPath)
	if t.AudioPath != "" {
		t.AudioPath = c.resolve(t.AudioPath)
	}
	if t.ThumbnailPath != "" {
		t.ThumbnailPath = c.resolve(t.ThumbnailPath)
	}
}

func (c *FileCatalog) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, p)
}

// Lookup returns the template with the given id
func (c *FileCatalog) Lookup(id string) (*models.Template, error) {
	tmpl, ok := c.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return tmpl, nil
}

// List returns templates matching the filter in descriptor order
func (c *FileCatalog) List(filter Filter) []*models.Template {
	out := make([]*models.Template, 0, len(c.order))
	for _, id := range c.order {
		t := c.templates[id]
		if filter.Character != "" && t.Character != filter.Character {
			continue
		}
		if filter.Gender != "" && t.Gender != filter.Gender {
			continue
		}
		out = append(out, t)
	}
	return out
}

// StaticCatalog serves a fixed template set, mainly for tests and demos
type StaticCatalog struct {
	templates map[string]*models.Template
	order     []string
}

// NewStaticCatalog builds a catalog from in-memory templates
func NewStaticCatalog(templates ...*models.Template) *StaticCatalog {
	c := &StaticCatalog{templates: make(map[string]*models.Template, len(templates))}
	for _, t := range templates {
		c.templates[t.ID] = t
		c.order = append(c.order, t.ID)
	}
	return c
}

// Lookup returns the template with the given id
func (c *StaticCatalog) Lookup(id string) (*models.Template, error) {
	tmpl, ok := c.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return tmpl, nil
}

// List returns templates matching the filter
func (c *StaticCatalog) List(filter Filter) []*models.Template {
	out := make([]*models.Template, 0, len(c.order))
	for _, id := range c.order {
		t := c.templates[id]
		if filter.Character != "" && t.Character != filter.Character {
			continue
		}
		if filter.Gender != "" && t.Gender != filter.Gender {
			continue
		}
		out = append(out, t)
	}
	return out
}
