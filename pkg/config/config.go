// Package config parses CLI flags and optional YAML scan profiles into
// the configuration the scanner runs from. Flags override profile values;
// a profile file carries everything a repeatable scan needs.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/injectest/injectest/pkg/input"
)

// Duration wraps time.Duration so YAML profiles can say "5s" or "2m".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML accepts either a duration string or raw nanoseconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		v, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("%w: bad duration %q", ErrInvalidConfig, s)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("%w: bad duration value", ErrInvalidConfig)
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML renders the duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// GeneratorSpec selects and parameterizes a payload generator.
type GeneratorSpec struct {
	// Kind is one of: traversal, xpath, xss, case, charset, encoding,
	// xmlbomb, passwords, usernames.
	Kind string `yaml:"kind"`

	// Input is the seed string for case and encoding variation.
	Input string `yaml:"input,omitempty"`

	// Traversal settings.
	Depth     int    `yaml:"depth,omitempty"`
	Filename  string `yaml:"filename,omitempty"`
	Extension string `yaml:"extension,omitempty"`

	// Charset fuzz settings.
	Alphabet string `yaml:"alphabet,omitempty"`
	Length   int    `yaml:"length,omitempty"`
	Count    int    `yaml:"count,omitempty"`

	// Case variation cap (0 = default).
	CaseCap int `yaml:"case_cap,omitempty"`

	// XML bomb shape.
	Width int `yaml:"width,omitempty"`

	// Seed makes randomized generators replayable.
	Seed int64 `yaml:"seed,omitempty"`
}

// Config holds all scanner configuration options.
type Config struct {
	// Target settings
	Target  string     `yaml:"target"`
	Method  string     `yaml:"method,omitempty"`
	Routes  []string   `yaml:"routes,omitempty"`
	Params  []input.KV `yaml:"params,omitempty"`
	Headers []input.KV `yaml:"headers,omitempty"`
	Body    string     `yaml:"body,omitempty"`

	// Injection points, e.g. "query:q", "path:1", "header:X-Api-Key",
	// "body:user.name".
	Points []string `yaml:"points,omitempty"`

	// Payload generator
	Generator GeneratorSpec `yaml:"generator"`

	// Verification
	AllowStatus []int `yaml:"allow_status,omitempty"`
	// Policy is "first" (stop at first matching predicate) or "all".
	Policy string `yaml:"policy,omitempty"`

	// Execution settings
	Concurrency int           `yaml:"concurrency,omitempty"`
	RateLimit   float64       `yaml:"rate_limit,omitempty"`
	Timeout     Duration      `yaml:"timeout,omitempty"`
	Deadline    Duration      `yaml:"deadline,omitempty"`
	Budget      int           `yaml:"budget,omitempty"`

	// Output settings
	OutputFormat string `yaml:"output_format,omitempty"` // json or console
	OutputFile   string `yaml:"output_file,omitempty"`
	Verbose      bool   `yaml:"verbose,omitempty"`

	// Transport settings
	Proxy      string `yaml:"proxy,omitempty"`
	SkipVerify bool   `yaml:"skip_verify,omitempty"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Method:       "GET",
		Generator:    GeneratorSpec{Kind: "traversal", Depth: 4},
		AllowStatus:  []int{200},
		Policy:       "first",
		Concurrency:  10,
		Timeout:      Duration(5 * time.Second),
		OutputFormat: "console",
		SkipVerify:   true,
	}
}

// LoadProfile reads a YAML scan profile over the given base config.
func LoadProfile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open profile: %v", ErrInvalidConfig, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("%w: read profile: %v", ErrInvalidConfig, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: parse profile %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

// ParseFlags parses args into a Config. A -profile flag loads a YAML
// profile first; explicitly set flags override its values.
func ParseFlags(args []string) (*Config, error) {
	fs := flag.NewFlagSet("injectest", flag.ContinueOnError)

	var (
		profile string
		target  string
		method  string
		routes  input.StringSliceFlag
		params  input.KVFlag
		headers input.KVFlag
		body    string
		points  input.StringSliceFlag
		allow   input.StringSliceFlag

		genKind  string
		genInput string
		depth    int
		filename string
		ext      string
		alphabet string
		length   int
		count    int
		caseCap  int
		width    int
		seed     int64

		policy      string
		concurrency int
		rateLimit   float64
		timeout     time.Duration
		deadline    time.Duration
		budget      int

		format  string
		outFile string
		verbose bool
		proxy   string
		skipTLS bool
	)

	fs.StringVar(&profile, "profile", "", "YAML scan profile file")
	fs.StringVar(&target, "u", "", "Target base URL")
	fs.StringVar(&target, "target", "", "Target base URL")
	fs.StringVar(&method, "X", "GET", "HTTP method")
	fs.Var(&routes, "route", "Route segment(s) appended to the target path")
	fs.Var(&params, "param", "Query parameter as name=value (repeatable)")
	fs.Var(&headers, "H", "Request header as name=value (repeatable)")
	fs.StringVar(&body, "body", "", "JSON request body")
	fs.Var(&points, "point", "Injection point: query:NAME, path:INDEX, header:NAME, body:PATH")
	fs.Var(&allow, "allow", "Allowed status codes, comma-separated")

	fs.StringVar(&genKind, "gen", "traversal", "Payload generator kind")
	fs.StringVar(&genInput, "gen-input", "", "Seed string for case/encoding generators")
	fs.IntVar(&depth, "depth", 4, "Traversal depth / bomb nesting depth")
	fs.StringVar(&filename, "filename", "", "Traversal target filename")
	fs.StringVar(&ext, "ext", "", "Traversal random-filename extension")
	fs.StringVar(&alphabet, "alphabet", "", "Charset fuzz alphabet")
	fs.IntVar(&length, "length", 8, "Charset fuzz payload length")
	fs.IntVar(&count, "count", 100, "Charset fuzz payload count")
	fs.IntVar(&caseCap, "case-cap", 0, "Case variation cap (0 = default)")
	fs.IntVar(&width, "width", 10, "XML bomb fan-out per level")
	fs.Int64Var(&seed, "seed", 1, "Seed for randomized generators")

	fs.StringVar(&policy, "policy", "first", "Verification policy: first or all")
	fs.IntVar(&concurrency, "c", 10, "Concurrent workers")
	fs.Float64Var(&rateLimit, "rate-limit", 0, "Max requests per second (0 = unlimited)")
	fs.DurationVar(&timeout, "timeout", 5*time.Second, "Per-request timeout")
	fs.DurationVar(&deadline, "deadline", 0, "Whole-scan deadline (0 = none)")
	fs.IntVar(&budget, "budget", 0, "Max attempts (0 = unlimited)")

	fs.StringVar(&format, "format", "console", "Report format: json or console")
	fs.StringVar(&outFile, "o", "", "Report file (default stdout)")
	fs.BoolVar(&verbose, "v", false, "Verbose logging")
	fs.StringVar(&proxy, "proxy", "", "Proxy URL (http, socks4, socks5, socks5h)")
	fs.BoolVar(&skipTLS, "insecure", true, "Skip TLS certificate verification")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg := Default()
	if profile != "" {
		if err := LoadProfile(profile, cfg); err != nil {
			return nil, err
		}
	}

	// Explicit flags win over profile values.
	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "u", "target":
			cfg.Target = target
		case "X":
			cfg.Method = method
		case "route":
			cfg.Routes = routes
		case "param":
			cfg.Params = params
		case "H":
			cfg.Headers = headers
		case "body":
			cfg.Body = body
		case "point":
			cfg.Points = points
		case "allow":
			codes, err := parseCodes(allow)
			if err != nil {
				flagErr = err
				return
			}
			cfg.AllowStatus = codes
		case "gen":
			cfg.Generator.Kind = genKind
		case "gen-input":
			cfg.Generator.Input = genInput
		case "depth":
			cfg.Generator.Depth = depth
		case "filename":
			cfg.Generator.Filename = filename
		case "ext":
			cfg.Generator.Extension = ext
		case "alphabet":
			cfg.Generator.Alphabet = alphabet
		case "length":
			cfg.Generator.Length = length
		case "count":
			cfg.Generator.Count = count
		case "case-cap":
			cfg.Generator.CaseCap = caseCap
		case "width":
			cfg.Generator.Width = width
		case "seed":
			cfg.Generator.Seed = seed
		case "policy":
			cfg.Policy = policy
		case "c":
			cfg.Concurrency = concurrency
		case "rate-limit":
			cfg.RateLimit = rateLimit
		case "timeout":
			cfg.Timeout = Duration(timeout)
		case "deadline":
			cfg.Deadline = Duration(deadline)
		case "budget":
			cfg.Budget = budget
		case "format":
			cfg.OutputFormat = format
		case "o":
			cfg.OutputFile = outFile
		case "v":
			cfg.Verbose = verbose
		case "proxy":
			cfg.Proxy = proxy
		case "insecure":
			cfg.SkipVerify = skipTLS
		}
	})
	if flagErr != nil {
		return nil, flagErr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("%w: target URL", ErrMissingRequired)
	}
	if !strings.HasPrefix(c.Target, "http://") && !strings.HasPrefix(c.Target, "https://") {
		return fmt.Errorf("%w: target must be an http(s) URL", ErrInvalidConfig)
	}
	if c.Method == "" {
		c.Method = "GET"
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: per-request timeout must be positive", ErrInvalidConfig)
	}
	switch c.Policy {
	case "", "first", "all":
	default:
		return fmt.Errorf("%w: policy must be first or all, got %q", ErrInvalidConfig, c.Policy)
	}
	switch c.OutputFormat {
	case "", "json", "console":
	default:
		return fmt.Errorf("%w: format must be json or console, got %q", ErrInvalidConfig, c.OutputFormat)
	}
	if len(c.Points) == 0 {
		return fmt.Errorf("%w: at least one injection point", ErrMissingRequired)
	}
	return nil
}

func parseCodes(values []string) ([]int, error) {
	codes := make([]int, 0, len(values))
	for _, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: bad status code %q", ErrInvalidConfig, v)
		}
		codes = append(codes, n)
	}
	return codes, nil
}
