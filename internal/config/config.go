package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"commline/internal/domain"
)

// Config models commline.yml.
type Config struct {
	Viewer struct {
		Name string `yaml:"name"`
	} `yaml:"viewer"`
	Categories map[string]Category `yaml:"categories"`
	Seed       []SeedCommission    `yaml:"seed"`
	Webhooks   []WebhookConfig     `yaml:"webhooks"`
}

type Category struct {
	Icon string `yaml:"icon"`
}

// SeedCommission is the built-in collection used to hydrate a workspace that
// has never been written (or whose stored collection is corrupt). Seed records
// have no id; the identity resolver derives one from title and artist.
type SeedCommission struct {
	Title        string  `yaml:"title"`
	Description  string  `yaml:"description"`
	Category     string  `yaml:"category"`
	Artist       string  `yaml:"artist"`
	ContactEmail string  `yaml:"contact_email"`
	Status       string  `yaml:"status"`
	Date         string  `yaml:"date"`
	LikeCount    int     `yaml:"like_count"`
	Price        float64 `yaml:"price"`
}

type WebhookConfig struct {
	URL    string   `yaml:"url"`
	Events []string `yaml:"events"`
}

const uncategorizedIcon = "question"

// IconFor returns the icon for a category, falling back to the uncategorized
// icon for values outside the catalog.
func (c *Config) IconFor(category string) string {
	if cat, ok := c.Categories[category]; ok && cat.Icon != "" {
		return cat.Icon
	}
	return uncategorizedIcon
}

// SeedCommissions converts the seed entries to domain records with normalized
// statuses.
func (c *Config) SeedCommissions() []domain.Commission {
	out := make([]domain.Commission, 0, len(c.Seed))
	for _, s := range c.Seed {
		status, _ := domain.NormalizeStatus(s.Status)
		cm := domain.Commission{
			Title:        s.Title,
			Description:  s.Description,
			Category:     s.Category,
			Artist:       s.Artist,
			ContactEmail: s.ContactEmail,
			Status:       status,
			Date:         s.Date,
		}
		if s.Price > 0 {
			price := s.Price
			cm.AgreedPrice = &price
		}
		out = append(out, cm)
	}
	return out
}

// SeedLikeCounts returns the mock like counts keyed by resolved identity, kept
// separate from the like toggles so user-driven likes merge over them.
func (c *Config) SeedLikeCounts() map[string]int {
	counts := make(map[string]int, len(c.Seed))
	for _, s := range c.Seed {
		if s.LikeCount > 0 {
			counts[s.Title+"-"+s.Artist] = s.LikeCount
		}
	}
	return counts
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Viewer.Name == "" {
		return fmt.Errorf("config.viewer.name is required")
	}
	for i, s := range c.Seed {
		if s.Title == "" {
			return fmt.Errorf("seed[%d] is missing a title", i)
		}
		if s.Artist == "" {
			return fmt.Errorf("seed commission %q is missing an artist", s.Title)
		}
		if s.Status != "" {
			if _, ok := domain.NormalizeStatus(s.Status); !ok {
				return fmt.Errorf("seed commission %q has unknown status %q", s.Title, s.Status)
			}
		}
	}
	for i, w := range c.Webhooks {
		if w.URL == "" {
			return fmt.Errorf("webhooks[%d] is missing a url", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "commline.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with cm config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in config.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns the default config YAML for cm config init.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

const defaultTemplate = `viewer:
  name: local-user

categories:
  illustration:
    icon: palette
  jewelry:
    icon: gem
  sculpture:
    icon: cube
  music:
    icon: note
  writing:
    icon: pen
  crochet:
    icon: yarn

seed:
  - title: Gold Earrings
    description: A pair of hand-forged gold earrings with leaf detailing.
    category: jewelry
    artist: Kreideprinz
    contact_email: kreideprinz@example.com
    status: pending
    date: Jan 12, 2026
    like_count: 3
  - title: Band Poster
    description: Gig poster for a three-night stand, riso-print style.
    category: illustration
    artist: Ink&Iron
    contact_email: inkandiron@example.com
    status: On Going
    date: Feb 2, 2026
    like_count: 7
    price: 140
  - title: Desk Gargoyle
    description: Palm-sized concrete gargoyle to guard a monitor stand.
    category: sculpture
    artist: Mossbank
    contact_email: mossbank@example.com
    status: pending
    date: Feb 9, 2026
`
