package zap

const (
	ModeDev  = "dev"
	ModeProd = "prod"
)

// Config drives the zap backed logger.
type Config struct {
	Mode       string   `json:"mode" yaml:"mode" env:"MODE"`
	AppName    string   `json:"app_name" yaml:"app_name" env:"APP_NAME"`
	Level      string   `json:"level" yaml:"level" env:"LEVEL"`
	Directory  string   `json:"directory" yaml:"directory" env:"DIRECTORY"`
	FormatJSON bool     `json:"format_json" yaml:"format_json" env:"FORMAT_JSON"`
	ErrorFile  bool     `json:"error_file" yaml:"error_file" env:"ERROR_FILE"`
	Sensitive  []string `json:"sensitive" yaml:"sensitive" env:"SENSITIVE" envSeparator:","`
	Rotate     *Rotate  `json:"rotate" yaml:"rotate" envPrefix:"ROTATE_"`
}

type Rotate struct {
	MaxSizeMB  int  `json:"max_size_mb" yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int  `json:"max_backups" yaml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int  `json:"max_age_days" yaml:"max_age_days" env:"MAX_AGE_DAYS"`
	Compress   bool `json:"compress" yaml:"compress" env:"COMPRESS"`
	LocalTime  bool `json:"local_time" yaml:"local_time" env:"LOCAL_TIME"`
}

func DefaultConfig(opts ...Option) *Config {
	c := &Config{
		Mode:      ModeDev,
		AppName:   "app",
		Level:     "debug",
		Directory: "./logs",
		Sensitive: []string{},
		Rotate: &Rotate{
			MaxSizeMB:  100,
			MaxBackups: 7,
			MaxAgeDays: 7,
			Compress:   true,
			LocalTime:  true,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Option func(*Config)

func WithAppName(appName string) Option {
	return func(c *Config) { c.AppName = appName }
}

func WithLevel(level string) Option {
	return func(c *Config) { c.Level = level }
}

func WithSensitive(keys []string) Option {
	return func(c *Config) { c.Sensitive = keys }
}
