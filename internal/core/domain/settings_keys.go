package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SettingKind is the value type of a setting key.
type SettingKind int

// Setting value kinds.
const (
	SettingString SettingKind = iota
	SettingInt
	SettingFloat
	SettingBool
	SettingDuration
)

// String returns the kind name.
func (k SettingKind) String() string {
	switch k {
	case SettingString:
		return "string"
	case SettingInt:
		return "int"
	case SettingFloat:
		return "float"
	case SettingBool:
		return "bool"
	case SettingDuration:
		return "duration"
	default:
		return unknownDescription
	}
}

// IsValid returns true if the splitter is recognised.
func (k SplitterKind) IsValid() bool {
	return k == SplitterRegex || k == SplitterProse
}

// SettingKey describes one dotted configuration key and where it lives in AppSettings.
type SettingKey struct {
	// Name is the dotted key, e.g. "embedding.model".
	Name string

	// Kind is the value type.
	Kind SettingKind

	// Secret marks values that must not be echoed.
	Secret bool

	get   func(*AppSettings) any
	set   func(*AppSettings, any)
	check func(any) error
}

// Value returns the key's current value in s.
func (k SettingKey) Value(s *AppSettings) any {
	return k.get(s)
}

// Apply coerces raw to the key's kind, validates it and stores it in s.
// raw may be a typed value (from TOML or viper) or a string (from the CLI).
func (k SettingKey) Apply(s *AppSettings, raw any) error {
	v, err := k.Coerce(raw)
	if err != nil {
		return err
	}
	k.set(s, v)
	return nil
}

// Coerce converts raw to the key's kind and validates it without storing it.
func (k SettingKey) Coerce(raw any) (any, error) {
	v, err := coerce(k.Kind, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, k.Name, err)
	}
	if k.check != nil {
		if err := k.check(v); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, k.Name, err)
		}
	}
	return v, nil
}

// Persisted returns the form written to a TOML file. Durations become strings.
func (k SettingKey) Persisted(v any) any {
	if d, ok := v.(time.Duration); ok {
		return d.String()
	}
	return v
}

func coerce(kind SettingKind, raw any) (any, error) {
	switch kind {
	case SettingString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case fmt.Stringer:
			return v.String(), nil
		}
	case SettingInt:
		switch v := raw.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			if v == math.Trunc(v) {
				return int(v), nil
			}
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("not an integer: %q", v)
			}
			return n, nil
		}
	case SettingFloat:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("not a number: %q", v)
			}
			return f, nil
		}
	case SettingBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("not a boolean: %q", v)
			}
			return b, nil
		}
	case SettingDuration:
		switch v := raw.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("not a duration: %q", v)
			}
			return d, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case int:
			return time.Duration(v) * time.Second, nil
		}
	}
	return nil, fmt.Errorf("want %s, got %T", kind, raw)
}

func stringKey(name string, field func(*AppSettings) *string, check func(string) error) SettingKey {
	k := SettingKey{
		Name: name,
		Kind: SettingString,
		get:  func(s *AppSettings) any { return *field(s) },
		set:  func(s *AppSettings, v any) { *field(s) = v.(string) },
	}
	if check != nil {
		k.check = func(v any) error { return check(v.(string)) }
	}
	return k
}

func secretKey(name string, field func(*AppSettings) *string) SettingKey {
	k := stringKey(name, field, nil)
	k.Secret = true
	return k
}

func enumKey[T ~string](name string, field func(*AppSettings) *T, valid func(T) bool) SettingKey {
	return SettingKey{
		Name: name,
		Kind: SettingString,
		get:  func(s *AppSettings) any { return string(*field(s)) },
		set:  func(s *AppSettings, v any) { *field(s) = T(v.(string)) },
		check: func(v any) error {
			if !valid(T(v.(string))) {
				return fmt.Errorf("unknown value %q", v)
			}
			return nil
		},
	}
}

func intKey(name string, field func(*AppSettings) *int, lowest int) SettingKey {
	return SettingKey{
		Name: name,
		Kind: SettingInt,
		get:  func(s *AppSettings) any { return *field(s) },
		set:  func(s *AppSettings, v any) { *field(s) = v.(int) },
		check: func(v any) error {
			if v.(int) < lowest {
				return fmt.Errorf("must be at least %d", lowest)
			}
			return nil
		},
	}
}

func floatKey(name string, field func(*AppSettings) *float64, lowest, highest float64) SettingKey {
	return SettingKey{
		Name: name,
		Kind: SettingFloat,
		get:  func(s *AppSettings) any { return *field(s) },
		set:  func(s *AppSettings, v any) { *field(s) = v.(float64) },
		check: func(v any) error {
			f := v.(float64)
			if math.IsNaN(f) || f < lowest || f > highest {
				return fmt.Errorf("must be between %g and %g", lowest, highest)
			}
			return nil
		},
	}
}

func boolKey(name string, field func(*AppSettings) *bool) SettingKey {
	return SettingKey{
		Name: name,
		Kind: SettingBool,
		get:  func(s *AppSettings) any { return *field(s) },
		set:  func(s *AppSettings, v any) { *field(s) = v.(bool) },
	}
}

func durationKey(name string, field func(*AppSettings) *time.Duration) SettingKey {
	return SettingKey{
		Name: name,
		Kind: SettingDuration,
		get:  func(s *AppSettings) any { return *field(s) },
		set:  func(s *AppSettings, v any) { *field(s) = v.(time.Duration) },
		check: func(v any) error {
			if v.(time.Duration) <= 0 {
				return fmt.Errorf("must be positive")
			}
			return nil
		},
	}
}

func oneOf(values ...string) func(string) error {
	return func(v string) error {
		for _, allowed := range values {
			if v == allowed {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s", strings.Join(values, ", "))
	}
}

var settingKeys = []SettingKey{
	stringKey("paths.data_dir", func(s *AppSettings) *string { return &s.DataDir }, oneNonEmpty),

	intKey("chunking.chunk_size", func(s *AppSettings) *int { return &s.Chunking.ChunkSize }, 1),
	intKey("chunking.chunk_overlap", func(s *AppSettings) *int { return &s.Chunking.ChunkOverlap }, 0),
	enumKey("chunking.splitter", func(s *AppSettings) *SplitterKind { return &s.Chunking.Splitter }, SplitterKind.IsValid),

	enumKey("embedding.provider", func(s *AppSettings) *AIProvider { return &s.Embedding.Provider },
		func(p AIProvider) bool { return p.IsValid() && p != AIProviderAnthropic }),
	stringKey("embedding.model", func(s *AppSettings) *string { return &s.Embedding.Model }, oneNonEmpty),
	stringKey("embedding.base_url", func(s *AppSettings) *string { return &s.Embedding.BaseURL }, nil),
	secretKey("embedding.api_key", func(s *AppSettings) *string { return &s.Embedding.APIKey }),
	intKey("embedding.dimensions", func(s *AppSettings) *int { return &s.Embedding.Dimensions }, 0),
	intKey("embedding.batch_size", func(s *AppSettings) *int { return &s.Embedding.BatchSize }, 1),
	durationKey("embedding.timeout", func(s *AppSettings) *time.Duration { return &s.Embedding.Timeout }),
	floatKey("embedding.requests_per_second",
		func(s *AppSettings) *float64 { return &s.Embedding.RequestsPerSecond }, 0, math.MaxFloat64),
	enumKey("embedding.cache", func(s *AppSettings) *CacheBackend { return &s.Cache.Embedding }, CacheBackend.IsValid),

	enumKey("index.type", func(s *AppSettings) *IndexType { return &s.Index.Type }, IndexType.IsValid),
	enumKey("index.metric", func(s *AppSettings) *Metric { return &s.Index.Metric }, Metric.IsValid),
	intKey("index.nlist", func(s *AppSettings) *int { return &s.Index.NList }, 1),
	intKey("index.nprobe", func(s *AppSettings) *int { return &s.Index.NProbe }, 1),
	intKey("index.train_threshold", func(s *AppSettings) *int { return &s.Index.TrainThreshold }, 0),

	enumKey("llm.local_provider", func(s *AppSettings) *AIProvider { return &s.Generation.Local.Provider },
		func(p AIProvider) bool { return p.IsValid() && p != AIProviderLocal }),
	stringKey("llm.local_model", func(s *AppSettings) *string { return &s.Generation.Local.Model }, oneNonEmpty),
	stringKey("llm.local_base_url", func(s *AppSettings) *string { return &s.Generation.Local.BaseURL }, nil),
	intKey("llm.local_max_tokens", func(s *AppSettings) *int { return &s.Generation.Local.MaxTokens }, 1),
	durationKey("llm.local_timeout", func(s *AppSettings) *time.Duration { return &s.Generation.Local.Timeout }),
	enumKey("llm.remote_provider", func(s *AppSettings) *AIProvider { return &s.Generation.Remote.Provider },
		func(p AIProvider) bool { return p.IsValid() && p != AIProviderLocal }),
	stringKey("llm.remote_model", func(s *AppSettings) *string { return &s.Generation.Remote.Model }, oneNonEmpty),
	stringKey("llm.base_url", func(s *AppSettings) *string { return &s.Generation.Remote.BaseURL }, nil),
	secretKey("llm.api_key", func(s *AppSettings) *string { return &s.Generation.Remote.APIKey }),
	intKey("llm.max_tokens", func(s *AppSettings) *int { return &s.Generation.Remote.MaxTokens }, 1),
	floatKey("llm.temperature", func(s *AppSettings) *float64 { return &s.Generation.Remote.Temperature }, 0, 2),
	durationKey("llm.timeout", func(s *AppSettings) *time.Duration { return &s.Generation.Remote.Timeout }),
	floatKey("llm.requests_per_second",
		func(s *AppSettings) *float64 { return &s.Generation.Remote.RequestsPerSecond }, 0, math.MaxFloat64),

	intKey("rag.top_k", func(s *AppSettings) *int { return &s.RAG.TopK }, 1),
	intKey("rag.max_context_tokens", func(s *AppSettings) *int { return &s.RAG.MaxContextTokens }, 1),
	enumKey("rag.truncation", func(s *AppSettings) *TruncationStrategy { return &s.RAG.Truncation },
		TruncationStrategy.IsValid),
	boolKey("rag.degraded_responses", func(s *AppSettings) *bool { return &s.RAG.DegradedResponses }),
	intKey("rag.source_preview_chars", func(s *AppSettings) *int { return &s.RAG.SourcePreviewChars }, 0),
	enumKey("rag.response_cache", func(s *AppSettings) *CacheBackend { return &s.Cache.Response }, CacheBackend.IsValid),

	stringKey("redis.addr", func(s *AppSettings) *string { return &s.Cache.RedisAddr }, nil),
	secretKey("redis.password", func(s *AppSettings) *string { return &s.Cache.RedisPassword }),
	intKey("redis.db", func(s *AppSettings) *int { return &s.Cache.RedisDB }, 0),

	stringKey("logging.format", func(s *AppSettings) *string { return &s.Logging.Format }, oneOf("console", "json")),
}

func oneNonEmpty(v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("must not be empty")
	}
	return nil
}

var settingIndex = func() map[string]SettingKey {
	idx := make(map[string]SettingKey, len(settingKeys))
	for _, k := range settingKeys {
		idx[k.Name] = k
	}
	return idx
}()

// SettingKeys returns every recognised setting key sorted by name.
func SettingKeys() []SettingKey {
	keys := make([]SettingKey, len(settingKeys))
	copy(keys, settingKeys)
	sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
	return keys
}

// LookupSettingKey finds a key by its dotted name.
func LookupSettingKey(name string) (SettingKey, bool) {
	k, ok := settingIndex[name]
	return k, ok
}

// Validate checks cross-field constraints that single keys cannot express.
func (s *AppSettings) Validate() error {
	if err := s.Chunking.Validate(); err != nil {
		return err
	}
	if s.Index.NProbe > s.Index.NList {
		return fmt.Errorf("%w: index.nprobe (%d) exceeds index.nlist (%d)", ErrInvalidInput, s.Index.NProbe, s.Index.NList)
	}
	if !s.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %s is not configured", ErrInvalidInput, s.Embedding.Provider)
	}
	return nil
}
