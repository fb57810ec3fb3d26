package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ChannelPublisher/internal/domain"
)

const (
	defaultTimezone    = "UTC"
	configPathEnv      = "CHANNEL_PUBLISHER_CONFIG"
	logLevelEnv        = "LOG_LEVEL"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChannelEnv = "TELEGRAM_CHANNEL_ID"
	githubTokenEnv     = "GITHUB_TOKEN"
	geminiAPIKeyEnv    = "GEMINI_API_KEY"
	chatGPTAPIKeyEnv   = "CHATGPT_API_KEY"
	chatGPTModelEnv    = "CHATGPT_MODEL"
)

// Acquisition modes.
const (
	ModeFeed    = "feed"
	ModeCatalog = "catalog"
)

// Store backends.
const (
	BackendGitHub = "github"
	BackendLocal  = "local"
)

// Capture renderers.
const (
	RendererRod       = "rod"
	RendererGenerated = "generated"
	RendererNone      = "none"
)

// Summarizer providers.
const (
	ProviderNone    = "none"
	ProviderGemini  = "gemini"
	ProviderChatGPT = "chatgpt"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Server      ServerConfig      `yaml:"server"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Store       StoreConfig       `yaml:"store"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	LinkMeta    LinkMetaConfig    `yaml:"linkmeta"`
	Capture     CaptureConfig     `yaml:"capture"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Gemini      GeminiConfig      `yaml:"gemini"`
	ChatGPT     ChatGPTConfig     `yaml:"chatgpt"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig describes the HTTP trigger listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
	// Timeout bounds one triggered invocation.
	Timeout time.Duration `yaml:"timeout"`
}

// SchedulerConfig defines when the publisher should run in `run` mode.
type SchedulerConfig struct {
	Interval   time.Duration  `yaml:"interval"`
	RunTimeout time.Duration  `yaml:"runTimeout"`
	Timezone   string         `yaml:"timezone"`
	location   *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// TelegramConfig wires all data required to post to the channel.
type TelegramConfig struct {
	BotToken   string        `yaml:"botToken"`
	ChannelID  string        `yaml:"channelId"`
	APIBaseURL string        `yaml:"apiBaseUrl"`
	Timeout    time.Duration `yaml:"timeout"`
	// MaxRedirects bounds redirect hops when downloading remote images.
	MaxRedirects int    `yaml:"maxRedirects"`
	LinkLabel    string `yaml:"linkLabel"`
}

// StoreConfig points at the versioned document store.
type StoreConfig struct {
	Backend    string        `yaml:"backend"`
	Owner      string        `yaml:"owner"`
	Repo       string        `yaml:"repo"`
	Branch     string        `yaml:"branch"`
	Token      string        `yaml:"token"`
	APIBaseURL string        `yaml:"apiBaseUrl"`
	LocalDir   string        `yaml:"localDir"`
	DataDir    string        `yaml:"dataDir"`
	ConfigPath string        `yaml:"configPath"`
	Timeout    time.Duration `yaml:"timeout"`
}

// AcquisitionConfig selects where candidates come from.
type AcquisitionConfig struct {
	Mode             string        `yaml:"mode"`
	Feeds            []string      `yaml:"feeds"`
	CatalogURL       string        `yaml:"catalogUrl"`
	Tags             []string      `yaml:"tags"`
	RefreshOnPublish bool          `yaml:"refreshOnPublish"`
	Timeout          time.Duration `yaml:"timeout"`
}

// LinkMetaConfig controls link classification and repository lookups.
type LinkMetaConfig struct {
	RepositoryHosts []string      `yaml:"repositoryHosts"`
	APIBaseURL      string        `yaml:"apiBaseUrl"`
	Timeout         time.Duration `yaml:"timeout"`
}

// CaptureConfig describes how the two album images are produced.
type CaptureConfig struct {
	Renderer        string        `yaml:"renderer"`
	PlaceholderURL  string        `yaml:"placeholderUrl"`
	NavigateTimeout time.Duration `yaml:"navigateTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ViewportWidth   int           `yaml:"viewportWidth"`
	ViewportHeight  int           `yaml:"viewportHeight"`
	BrowserBin      string        `yaml:"browserBin"`
	GeneratedPrompt string        `yaml:"generatedPrompt"`
	GenerateTimeout time.Duration `yaml:"generateTimeout"`
}

// SummarizerConfig selects the AI provider for titles and descriptions.
type SummarizerConfig struct {
	Provider string        `yaml:"provider"`
	Timeout  time.Duration `yaml:"timeout"`
}

// GeminiConfig defines how to contact the Gemini API.
type GeminiConfig struct {
	APIKey     string `yaml:"apiKey"`
	Model      string `yaml:"model"`
	ImageModel string `yaml:"imageModel"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
// An empty path falls back to CHANNEL_PUBLISHER_CONFIG.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = defaultConfig()
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate reports every credential or setting the active mode needs but lacks.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		missing = append(missing, telegramTokenEnv)
	}
	if strings.TrimSpace(c.Telegram.ChannelID) == "" {
		missing = append(missing, telegramChannelEnv)
	}

	switch c.Store.Backend {
	case BackendGitHub:
		if c.Store.Token == "" {
			missing = append(missing, githubTokenEnv)
		}
		if c.Store.Owner == "" || c.Store.Repo == "" {
			missing = append(missing, "store.owner/store.repo")
		}
	case BackendLocal:
		if c.Store.LocalDir == "" {
			missing = append(missing, "store.localDir")
		}
	default:
		missing = append(missing, fmt.Sprintf("store.backend (unknown %q)", c.Store.Backend))
	}

	switch c.Acquisition.Mode {
	case ModeFeed:
		if len(c.Acquisition.Feeds) == 0 {
			missing = append(missing, "acquisition.feeds")
		}
	case ModeCatalog:
		if c.Acquisition.CatalogURL == "" {
			missing = append(missing, "acquisition.catalogUrl")
		}
	default:
		missing = append(missing, fmt.Sprintf("acquisition.mode (unknown %q)", c.Acquisition.Mode))
	}

	switch c.Summarizer.Provider {
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			missing = append(missing, geminiAPIKeyEnv)
		}
	case ProviderChatGPT:
		if c.ChatGPT.APIKey == "" {
			missing = append(missing, chatGPTAPIKeyEnv)
		}
	}
	if c.Capture.Renderer == RendererGenerated && c.Gemini.APIKey == "" {
		missing = append(missing, geminiAPIKeyEnv+" (capture.renderer=generated)")
	}

	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: missing %s", domain.ErrConfig, strings.Join(missing, ", "))
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChannelEnv); v != "" {
		c.Telegram.ChannelID = v
	}

	if v := os.Getenv(githubTokenEnv); v != "" {
		c.Store.Token = v
	}

	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.Gemini.APIKey = v
	}

	if v := os.Getenv(chatGPTAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}

	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Server:    ServerConfig{Addr: ":8080", Path: "/api/publish", Timeout: 5 * time.Minute},
		Scheduler: SchedulerConfig{Interval: 6 * time.Hour, RunTimeout: 5 * time.Minute, Timezone: defaultTimezone, location: tz},
		Telegram: TelegramConfig{
			APIBaseURL:   "https://api.telegram.org",
			Timeout:      30 * time.Second,
			MaxRedirects: 3,
			LinkLabel:    "Visit site",
		},
		Store: StoreConfig{
			Backend:    BackendGitHub,
			Branch:     "main",
			DataDir:    "data/websites",
			ConfigPath: "data/config.json",
			LocalDir:   "./store",
			Timeout:    15 * time.Second,
		},
		Acquisition: AcquisitionConfig{
			Mode:       ModeCatalog,
			CatalogURL: "https://raw.githubusercontent.com/liyupi/awesome-websites/master/README.md",
			Feeds: []string{
				"https://sspai.com/feed",
				"https://www.ifanr.com/feed",
				"https://www.ithome.com/rss/",
			},
			Tags:    []string{"tool"},
			Timeout: 20 * time.Second,
		},
		LinkMeta: LinkMetaConfig{
			RepositoryHosts: []string{"github.com"},
			Timeout:         10 * time.Second,
		},
		Capture: CaptureConfig{
			Renderer:        RendererRod,
			PlaceholderURL:  "https://picsum.photos/seed/channel-publisher/800/450",
			NavigateTimeout: 30 * time.Second,
			IdleTimeout:     5 * time.Second,
			ViewportWidth:   1280,
			ViewportHeight:  800,
			GeneratedPrompt: "A clean, modern digital illustration of a computer screen showing a website, vibrant colors.",
			GenerateTimeout: 60 * time.Second,
		},
		Summarizer: SummarizerConfig{Provider: ProviderNone, Timeout: 30 * time.Second},
		Gemini: GeminiConfig{
			Model:      "gemini-2.5-flash",
			ImageModel: "imagen-3.0-generate-002",
		},
		ChatGPT: ChatGPTConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You write short, catchy titles and descriptions for websites shared in a channel.",
		},
	}
}
