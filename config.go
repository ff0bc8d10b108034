package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kir-gadjello/anygem/conversation"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimeoutSeconds = 300
	configDirName         = ".anygem"
)

type PresentationConfig struct {
	Length      *int    `yaml:"length,omitempty"`
	Density     *string `yaml:"density,omitempty"`
	Theme       *string `yaml:"theme,omitempty"`
	PptMode     *string `yaml:"ppt_mode,omitempty"`
	VisualStyle *string `yaml:"visual_style,omitempty"`
	Language    *string `yaml:"language,omitempty"`
	Audience    *string `yaml:"audience,omitempty"`
}

type ConfigFile struct {
	APIURL          *string             `yaml:"api_url,omitempty"`
	Timeout         *int                `yaml:"timeout,omitempty"` // Seconds
	StateDB         *string             `yaml:"state_db,omitempty"`
	MaxAttachmentKB *int                `yaml:"max_attachment_kb,omitempty"`
	RenderMarkdown  *bool               `yaml:"render_markdown,omitempty"`
	ReportStyle     *string             `yaml:"report_style,omitempty"`
	Presentation    *PresentationConfig `yaml:"presentation,omitempty"`
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDirName), nil
}

func configPath() string {
	dir, err := configDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

func loadConfig() (*ConfigFile, error) {
	dir, err := configDir()
	if err != nil {
		// Don't fail completely if we can't get home dir
		return &ConfigFile{}, nil
	}
	return loadConfigFrom(dir)
}

// loadConfigFrom reads dir/config.yaml. A missing file yields an empty config
// and the directory is created for the state database and debug log.
func loadConfigFrom(dir string) (*ConfigFile, error) {
	path := filepath.Join(dir, "config.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			os.MkdirAll(dir, 0o755) // Ignore error
			return &ConfigFile{}, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if _, err := cfg.options(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

// options overlays the file's option values on the defaults, validating each
// one the same way the /set command does.
func (cfg *ConfigFile) options() (conversation.Options, error) {
	opts := conversation.DefaultOptions()

	set := func(key string, value *string) error {
		if value == nil {
			return nil
		}
		return opts.Set(key, *value)
	}

	if err := set("style", cfg.ReportStyle); err != nil {
		return opts, fmt.Errorf("report_style: %w", err)
	}

	p := cfg.Presentation
	if p == nil {
		return opts, nil
	}
	if p.Length != nil {
		if err := opts.Set("length", strconv.Itoa(*p.Length)); err != nil {
			return opts, fmt.Errorf("presentation.length: %w", err)
		}
	}
	fields := []struct {
		key   string
		value *string
	}{
		{"density", p.Density},
		{"theme", p.Theme},
		{"ppt_mode", p.PptMode},
		{"visual_style", p.VisualStyle},
		{"language", p.Language},
		{"audience", p.Audience},
	}
	for _, f := range fields {
		if err := set(f.key, f.value); err != nil {
			return opts, fmt.Errorf("presentation.%s: %w", f.key, err)
		}
	}
	return opts, nil
}

// RunConfig is the resolved configuration of a single invocation.
type RunConfig struct {
	APIURL          string
	Timeout         time.Duration
	StateDB         string
	MaxAttachmentKB int
	RenderMarkdown  bool
	Verbose         bool
	Mode            conversation.Mode
	Options         conversation.Options
}

// optionFlags maps command line flags onto option keys.
var optionFlags = map[string]string{
	"style":        "style",
	"length":       "length",
	"density":      "density",
	"theme":        "theme",
	"ppt-mode":     "ppt_mode",
	"visual-style": "visual_style",
	"language":     "language",
	"audience":     "audience",
}

func addOptionFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("api-url", "", "Backend URL (env ANYGEM_API_URL)")
	flags.Int("timeout", 0, "Request timeout in seconds (default 300)")
	flags.BoolP("verbose", "v", false, "http & debug logging")
	flags.StringP("mode", "m", "", "Mode: chat|search|report|presentation|drawing")

	flags.String("style", "", "Report style")
	flags.Int("length", 0, "Presentation length (slides)")
	flags.String("density", "", "Presentation density: detailed|brief")
	flags.String("theme", "", "Presentation theme")
	flags.String("ppt-mode", "", "Presentation rendering: hybrid|geometric|ai_visual")
	flags.String("visual-style", "", "Presentation visual style")
	flags.String("language", "", "Output language")
	flags.String("audience", "", "Target audience")
}

// getRunConfig resolves defaults, then the config file, then the
// environment (a .env file in the working directory included), then flags.
func getRunConfig(cmd *cobra.Command, cfg *ConfigFile) (RunConfig, error) {
	if cfg == nil {
		cfg = &ConfigFile{}
	}

	// Existing environment variables win over .env
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return RunConfig{}, fmt.Errorf("failed to load .env: %w", err)
	}

	rc := RunConfig{
		Timeout:         defaultTimeoutSeconds * time.Second,
		MaxAttachmentKB: conversation.DefaultMaxAttachmentKB,
		RenderMarkdown:  true,
		Mode:            conversation.ModeChat,
	}

	if dir, err := configDir(); err == nil {
		rc.StateDB = filepath.Join(dir, "state.db")
	}
	if cfg.APIURL != nil {
		rc.APIURL = *cfg.APIURL
	}
	if cfg.Timeout != nil && *cfg.Timeout > 0 {
		rc.Timeout = time.Duration(*cfg.Timeout) * time.Second
	}
	if cfg.StateDB != nil && *cfg.StateDB != "" {
		rc.StateDB = *cfg.StateDB
	}
	if cfg.MaxAttachmentKB != nil && *cfg.MaxAttachmentKB > 0 {
		rc.MaxAttachmentKB = *cfg.MaxAttachmentKB
	}
	if cfg.RenderMarkdown != nil {
		rc.RenderMarkdown = *cfg.RenderMarkdown
	}

	opts, err := cfg.options()
	if err != nil {
		return rc, err
	}
	rc.Options = opts

	rc.APIURL = getFirstEnv(rc.APIURL, "ANYGEM_API_URL")
	rc.StateDB = getFirstEnv(rc.StateDB, "ANYGEM_STATE_DB")

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		rc.APIURL, _ = flags.GetString("api-url")
	}
	if flags.Changed("timeout") {
		seconds, _ := flags.GetInt("timeout")
		if seconds <= 0 {
			return rc, fmt.Errorf("--timeout must be positive, got %d", seconds)
		}
		rc.Timeout = time.Duration(seconds) * time.Second
	}
	rc.Verbose, _ = flags.GetBool("verbose")

	if flags.Changed("mode") {
		name, _ := flags.GetString("mode")
		mode, err := conversation.ParseMode(name)
		if err != nil {
			return rc, err
		}
		rc.Mode = mode
	}

	for flag, key := range optionFlags {
		f := flags.Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := rc.Options.Set(key, f.Value.String()); err != nil {
			return rc, fmt.Errorf("--%s: %w", flag, err)
		}
	}

	if err := rc.Options.Validate(); err != nil {
		return rc, err
	}
	if rc.StateDB == "" {
		return rc, fmt.Errorf("no state database path: set state_db in config.yaml or ANYGEM_STATE_DB")
	}
	return rc, nil
}

func getFirstEnv(fallback string, envVars ...string) string {
	for _, name := range envVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return fallback
}
