package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Deployment environment names recognised by WithEnvironment.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Format represents logger output format.
type Format string

const (
	// FormatJSON emits one JSON object per record.
	FormatJSON Format = "json"
	// FormatText emits logfmt-style lines for local runs.
	FormatText Format = "text"
)

// profile is the level and format an environment starts from.
type profile struct {
	env    string
	level  slog.Level
	format Format
}

var profiles = map[string]profile{
	EnvDevelopment: {env: EnvDevelopment, level: slog.LevelDebug, format: FormatText},
	"dev":          {env: EnvDevelopment, level: slog.LevelDebug, format: FormatText},
	EnvStaging:     {env: EnvStaging, level: slog.LevelInfo, format: FormatJSON},
	"stage":        {env: EnvStaging, level: slog.LevelInfo, format: FormatJSON},
	EnvProduction:  {env: EnvProduction, level: slog.LevelInfo, format: FormatJSON},
	"prod":         {env: EnvProduction, level: slog.LevelInfo, format: FormatJSON},
}

// Option configures logger creation.
type Option func(*config)

type config struct {
	level          slog.Level
	format         Format
	output         io.Writer
	attrs          []slog.Attr
	handlerOptions *slog.HandlerOptions
	extractors     []ContextExtractor
}

func WithLevel(l slog.Level) Option {
	return func(c *config) { c.level = l }
}

// WithLevelName parses names such as "debug" or "WARN+2". Unknown or empty
// names leave the current level untouched.
func WithLevelName(name string) Option {
	return func(c *config) {
		var l slog.Level
		if name == "" || l.UnmarshalText([]byte(name)) != nil {
			return
		}
		c.level = l
	}
}

// WithFormat sets output format. Unknown formats panic so a bad flag stops
// the node at startup.
func WithFormat(f Format) Option {
	return func(c *config) {
		switch f {
		case FormatJSON, FormatText:
			c.format = f
		default:
			panic(fmt.Errorf("invalid log format %q: must be %q or %q", f, FormatJSON, FormatText))
		}
	}
}

func WithTextFormatter() Option { return WithFormat(FormatText) }

func WithJSONFormatter() Option { return WithFormat(FormatJSON) }

// WithOutput sets the destination. Nil writers are ignored.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.output = w
		}
	}
}

// WithHandlerOptions replaces the slog handler options, level included.
func WithHandlerOptions(opts *slog.HandlerOptions) Option {
	return func(c *config) {
		if opts != nil {
			c.handlerOptions = opts
		}
	}
}

// WithAttr adds static attributes to every record. Empty attributes, such as
// those returned by SessionID(""), are skipped.
func WithAttr(attrs ...slog.Attr) Option {
	return func(c *config) {
		for _, a := range attrs {
			if !a.Equal(slog.Attr{}) {
				c.attrs = append(c.attrs, a)
			}
		}
	}
}

// WithContextExtractors registers callbacks run on every record.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(c *config) {
		for _, ex := range extractors {
			if ex != nil {
				c.extractors = append(c.extractors, ex)
			}
		}
	}
}

// WithContextValue logs ctx.Value(key) under name whenever it is set.
func WithContextValue(name string, key any) Option {
	if name == "" || key == nil {
		return func(*config) {}
	}
	return WithContextExtractors(ValueExtractor(name, key))
}

// WithEnvironment applies the level and format of env and tags records with
// service and env. Unknown environments fall back to development.
func WithEnvironment(env, service string) Option {
	return func(c *config) {
		p, ok := profiles[strings.ToLower(env)]
		if !ok {
			p = profiles[EnvDevelopment]
		}
		c.level = p.level
		c.format = p.format
		if service != "" {
			c.attrs = append(c.attrs, slog.String("service", service))
		}
		c.attrs = append(c.attrs, slog.String("env", p.env))
	}
}

func WithDevelopment(service string) Option { return WithEnvironment(EnvDevelopment, service) }

func WithStaging(service string) Option { return WithEnvironment(EnvStaging, service) }

func WithProduction(service string) Option { return WithEnvironment(EnvProduction, service) }

// Nop returns a logger that drops every record.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func SetAsDefault(l *slog.Logger) {
	slog.SetDefault(l)
}

// New builds a JSON logger at info level on stdout unless options say
// otherwise. Context extractors run on every record.
func New(opts ...Option) *slog.Logger {
	cfg := &config{
		level:  slog.LevelInfo,
		format: FormatJSON,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	handlerOpts := cfg.handlerOptions
	if handlerOpts == nil {
		handlerOpts = &slog.HandlerOptions{Level: cfg.level}
	}

	var h slog.Handler
	if cfg.format == FormatText {
		h = slog.NewTextHandler(cfg.output, handlerOpts)
	} else {
		h = slog.NewJSONHandler(cfg.output, handlerOpts)
	}
	if len(cfg.attrs) > 0 {
		h = h.WithAttrs(cfg.attrs)
	}
	return slog.New(NewContextHandler(h, cfg.extractors...))
}
