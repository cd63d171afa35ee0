package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// #region types
// Config holds all cotherapist configuration.
type Config struct {
	Safety       SafetyConfig       `yaml:"safety"`
	Retrieval    RetrievalConfig    `yaml:"retrieval"`
	Agentic      AgenticConfig      `yaml:"agentic"`
	Evaluation   EvaluationConfig   `yaml:"evaluation"`
	Psychometric PsychometricConfig `yaml:"psychometric"`
	Inference    InferenceConfig    `yaml:"inference"`
	Store        StoreConfig        `yaml:"store"`
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// SafetyConfig configures the crisis and toxicity gate.
type SafetyConfig struct {
	Enabled           bool     `yaml:"enabled"`
	CrisisDetection   bool     `yaml:"crisis_detection"`
	ToxicityThreshold float64  `yaml:"toxicity_threshold"`
	CrisisKeywords    []string `yaml:"crisis_keywords"`
	EmergencyResponse string   `yaml:"emergency_response"`
	PolicyPath        string   `yaml:"policy_path"` // optional rego module
}

// RetrievalConfig configures the knowledge base.
type RetrievalConfig struct {
	Enabled             bool    `yaml:"enabled"`
	KnowledgeBasePath   string  `yaml:"knowledge_base_path"`
	IndexDir            string  `yaml:"index_dir"`
	ChunkSize           int     `yaml:"chunk_size"`
	ChunkOverlap        int     `yaml:"chunk_overlap"`
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	EmbedWorkers        int     `yaml:"embed_workers"`
}

// AgenticConfig toggles the reasoning stages.
type AgenticConfig struct {
	Enabled        bool `yaml:"enabled"`
	ChainOfThought bool `yaml:"chain_of_thought"`
	SelfCritique   bool `yaml:"self_critique_enabled"`
	Reflection     bool `yaml:"reflection_enabled"`
}

// EvaluationConfig selects the active metrics.
type EvaluationConfig struct {
	Metrics          []string `yaml:"metrics"`
	NormalizeWeights bool     `yaml:"normalize_weights"`
	Workers          int      `yaml:"workers"`
}

// PsychometricConfig selects the analyzed traits.
type PsychometricConfig struct {
	Enabled bool     `yaml:"enabled"`
	Traits  []string `yaml:"traits"`
}

// InferenceConfig selects and tunes the model backend.
type InferenceConfig struct {
	Provider       string        `yaml:"provider"` // grpc | gemini
	Addr           string        `yaml:"addr"`
	GeminiAPIKey   string        `yaml:"gemini_api_key"`
	Model          string        `yaml:"model"`
	EmbeddingModel string        `yaml:"embedding_model"`
	Toxicity       bool          `yaml:"toxicity"` // score toxicity through the grpc service
	Slots          int           `yaml:"slots"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	StageTimeout   time.Duration `yaml:"stage_timeout"`
}

// StoreConfig locates the turn store.
type StoreConfig struct {
	Path string `yaml:"path"` // empty disables recording
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// #endregion types

// #region defaults
// Default returns the shipped configuration.
func Default() *Config {
	return &Config{
		Safety: SafetyConfig{
			Enabled:           true,
			CrisisDetection:   true,
			ToxicityThreshold: 0.7,
			CrisisKeywords: []string{
				"suicide", "kill myself", "end my life", "self-harm",
				"hurt myself", "no reason to live", "better off dead",
			},
		},
		Retrieval: RetrievalConfig{
			Enabled:             true,
			KnowledgeBasePath:   "data/knowledge_base",
			IndexDir:            "data/index",
			ChunkSize:           512,
			ChunkOverlap:        50,
			TopK:                3,
			SimilarityThreshold: 0.7,
			EmbedWorkers:        4,
		},
		Agentic: AgenticConfig{
			Enabled:        true,
			ChainOfThought: true,
			SelfCritique:   true,
			Reflection:     true,
		},
		Evaluation: EvaluationConfig{
			Metrics: []string{
				"empathy", "relevance", "informativeness",
				"safety", "therapeutic_alliance", "clinical_accuracy",
			},
			Workers: 4,
		},
		Psychometric: PsychometricConfig{
			Enabled: true,
			Traits: []string{
				"agreeableness", "conscientiousness", "emotional_stability",
				"openness", "extraversion",
			},
		},
		Inference: InferenceConfig{
			Provider:       "grpc",
			Addr:           "localhost:50051",
			Model:          "gemini-2.0-flash",
			EmbeddingModel: "gemini-embedding-001",
			Slots:          2,
			CallTimeout:    30 * time.Second,
			StageTimeout:   90 * time.Second,
		},
		Store:   StoreConfig{Path: "cotherapist.db"},
		Server:  ServerConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// #endregion defaults

// #region load
// Load returns the defaults overlaid by the YAML file at path (if any)
// and then by COTHERAPIST_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Inference.Provider = envOr("COTHERAPIST_PROVIDER", c.Inference.Provider)
	c.Inference.Addr = envOr("COTHERAPIST_INFERENCE_ADDR", c.Inference.Addr)
	c.Inference.GeminiAPIKey = envOr("GEMINI_API_KEY", c.Inference.GeminiAPIKey)
	c.Inference.GeminiAPIKey = envOr("COTHERAPIST_GEMINI_API_KEY", c.Inference.GeminiAPIKey)
	c.Inference.Model = envOr("COTHERAPIST_MODEL", c.Inference.Model)
	c.Retrieval.KnowledgeBasePath = envOr("COTHERAPIST_KB_PATH", c.Retrieval.KnowledgeBasePath)
	c.Retrieval.IndexDir = envOr("COTHERAPIST_INDEX_DIR", c.Retrieval.IndexDir)
	c.Store.Path = envOr("COTHERAPIST_DB", c.Store.Path)
	c.Server.Addr = envOr("COTHERAPIST_ADDR", c.Server.Addr)
	c.Logging.Level = envOr("COTHERAPIST_LOG_LEVEL", c.Logging.Level)
	if v := os.Getenv("COTHERAPIST_SAFETY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Safety.Enabled = b
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// #endregion load
