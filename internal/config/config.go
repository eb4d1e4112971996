package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"leccap/internal/util"
)

// DefaultDownloadCommand fetches every "<filename> <url>" line of the link
// file in parallel. The launcher exports the link file name as
// LECCAP_LINKS_FILE.
const DefaultDownloadCommand = `exec xargs < "$LECCAP_LINKS_FILE" -P 0 -L 1 wget -O`

// ErrInvalid marks configuration that parsed but failed validation.
var ErrInvalid = errors.New("invalid config")

// Filters are the per-course recording filters. Missing lists are empty.
type Filters struct {
	TitleFilters   []string `yaml:"title_filters"`
	SectionFilters []string `yaml:"section_filters"`
	TimeFilters    []string `yaml:"time_filters"`
	// TimeToleranceMinutes overrides the top-level tolerance when set.
	TimeToleranceMinutes *int `yaml:"time_tolerance_minutes"`
}

// Course is one configured course key and its filters. Key is case-folded.
type Course struct {
	Key     string
	Filters Filters
}

// Download configures the external downloader run after each link file.
type Download struct {
	Enabled   *bool  `yaml:"enabled"`
	Command   string `yaml:"command"`
	LinksFile string `yaml:"links_file"`
	LogFile   string `yaml:"log_file"`
}

// Config defines runtime settings loaded from YAML (or JSON).
type Config struct {
	StartYear int `yaml:"start_year"`
	// EndYear defaults to the current year.
	EndYear   int    `yaml:"end_year"`
	OutputDir string `yaml:"directory_path"`
	BaseURL   string `yaml:"base_url"`
	// CookiesFile is a Netscape cookie export of a logged-in browser session.
	CookiesFile    string        `yaml:"cookies_file"`
	LoginTimeout   time.Duration `yaml:"login_timeout"`
	ListingTimeout time.Duration `yaml:"listing_timeout"`
	ScriptTimeout  time.Duration `yaml:"script_timeout"`

	TimeToleranceMinutes *int    `yaml:"time_tolerance_minutes"`
	RequestConcurrency   int     `yaml:"request_concurrency"`
	RequestsPerSecond    float64 `yaml:"requests_per_second"`
	// FileNameChars replaces the portable filename character set when set.
	FileNameChars   string `yaml:"filename_chars"`
	LogLevel        string `yaml:"log_level"`
	MetricsTextfile string `yaml:"metrics_textfile"`

	Download Download   `yaml:"download"`
	Courses  CourseList `yaml:"courses"`
}

// CourseList is the ordered set of configured courses.
type CourseList []Course

// UnmarshalYAML keeps file order and folds keys, rejecting keys that collide
// after folding.
func (l *CourseList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: courses must be a mapping of course name to filters", value.Line)
	}
	seen := make(map[string]int, len(value.Content)/2)
	out := make(CourseList, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		k, v := value.Content[i], value.Content[i+1]
		key := util.FoldCase(k.Value)
		if key == "" {
			return fmt.Errorf("line %d: empty course name", k.Line)
		}
		if line, dup := seen[key]; dup {
			return fmt.Errorf("line %d: course %q duplicates the course on line %d", k.Line, k.Value, line)
		}
		seen[key] = k.Line
		var f Filters
		if v.Kind != yaml.ScalarNode || v.Tag != "!!null" {
			if err := v.Decode(&f); err != nil {
				return fmt.Errorf("course %q: %w", k.Value, err)
			}
		}
		out = append(out, Course{Key: key, Filters: f})
	}
	*l = out
	return nil
}

// Load reads, validates, and normalizes config from a YAML or JSON file path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return parse(raw, time.Now())
}

func parse(raw []byte, now time.Time) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Config{}, err
	}
	c.applyDefaults(now)
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Keep defaults centralized so callers can rely on normalized values.
func (c *Config) applyDefaults(now time.Time) {
	if c.EndYear == 0 {
		c.EndYear = now.Year()
	}
	if c.OutputDir == "" {
		c.OutputDir = "downloads"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://leccap.engin.umich.edu"
	}
	if c.CookiesFile == "" {
		c.CookiesFile = "cookies.txt"
	}
	if c.LoginTimeout == 0 {
		c.LoginTimeout = 180 * time.Second
	}
	if c.ListingTimeout == 0 {
		c.ListingTimeout = 30 * time.Second
	}
	if c.ScriptTimeout == 0 {
		c.ScriptTimeout = 60 * time.Second
	}
	if c.TimeToleranceMinutes == nil {
		d := int(util.DefaultTolerance / time.Minute)
		c.TimeToleranceMinutes = &d
	}
	if c.RequestConcurrency <= 0 {
		c.RequestConcurrency = 8
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 10
	}
	if c.Download.Command == "" {
		c.Download.Command = DefaultDownloadCommand
	}
	if c.Download.LinksFile == "" {
		c.Download.LinksFile = "links.txt"
	}
	if c.Download.LogFile == "" {
		c.Download.LogFile = "download_output.txt"
	}
}

func (c Config) validate() error {
	if c.StartYear <= 0 {
		return fmt.Errorf("%w: `start_year` is required", ErrInvalid)
	}
	if c.StartYear > c.EndYear {
		return fmt.Errorf("%w: start_year %d is after end_year %d", ErrInvalid, c.StartYear, c.EndYear)
	}
	if len(c.Courses) == 0 {
		return fmt.Errorf("%w: config must contain a non-empty `courses` mapping", ErrInvalid)
	}
	if c.LoginTimeout < 0 || c.ListingTimeout < 0 || c.ScriptTimeout < 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalid)
	}
	if *c.TimeToleranceMinutes < 0 {
		return fmt.Errorf("%w: time_tolerance_minutes must not be negative", ErrInvalid)
	}
	for _, course := range c.Courses {
		if tol := course.Filters.TimeToleranceMinutes; tol != nil && *tol < 0 {
			return fmt.Errorf("%w: course %q: time_tolerance_minutes must not be negative", ErrInvalid, course.Key)
		}
	}
	return nil
}

// Years returns every year from StartYear to EndYear inclusive.
func (c Config) Years() []int {
	years := make([]int, 0, c.EndYear-c.StartYear+1)
	for y := c.StartYear; y <= c.EndYear; y++ {
		years = append(years, y)
	}
	return years
}

// CourseKeys returns the folded course keys in file order.
func (c Config) CourseKeys() []string {
	keys := make([]string, len(c.Courses))
	for i, course := range c.Courses {
		keys[i] = course.Key
	}
	return keys
}

// Course looks up a course by folded key.
func (c Config) Course(key string) (Course, bool) {
	for _, course := range c.Courses {
		if course.Key == key {
			return course, true
		}
	}
	return Course{}, false
}

// Tolerance returns the time filter window for course.
func (c Config) Tolerance(course Course) time.Duration {
	if tol := course.Filters.TimeToleranceMinutes; tol != nil {
		return time.Duration(*tol) * time.Minute
	}
	if c.TimeToleranceMinutes != nil {
		return time.Duration(*c.TimeToleranceMinutes) * time.Minute
	}
	return util.DefaultTolerance
}

// DownloadEnabled reports whether the external downloader should run.
func (c Config) DownloadEnabled() bool {
	return c.Download.Enabled == nil || *c.Download.Enabled
}
