// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"errors"
	"strings"
)

// Config holds configuration for OpenAI-compatible AI services.
type Config struct {
	// ProviderName identifies the provider in chunk metadata and status
	// reports. Example: "openai", "local"
	ProviderName string

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// ScorerHost is the base URL for the relevance-scoring chat API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	ScorerHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// ScorerModel is the model identifier to use for relevance scoring.
	// Example: "qwen2.5:3b", "gpt-4o-mini"
	ScorerModel string

	// APIKey authenticates against the service. Local OpenAI-compatible
	// servers typically accept any non-empty token.
	APIKey string

	// Dimensions is the vector width the embedding model produces.
	Dimensions int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProviderName sets the provider identifier.
func WithProviderName(name string) ConfigOption {
	return func(c *Config) {
		c.ProviderName = name
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithScorerHost sets the relevance scorer host URL.
func WithScorerHost(host string) ConfigOption {
	return func(c *Config) {
		c.ScorerHost = host
	}
}

// WithHost sets both embedding and scorer hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ScorerHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithScorerModel sets the relevance scorer model identifier.
func WithScorerModel(model string) ConfigOption {
	return func(c *Config) {
		c.ScorerModel = model
	}
}

// WithAPIKey sets the authentication token.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithDimensions sets the embedding vector width.
func WithDimensions(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = dim
	}
}

// DefaultConfig returns a Config with sensible defaults for local
// OpenAI-compatible services. By default, embedding and scoring use the
// same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		ProviderName:   "local",
		EmbeddingHost:  defaultHost,
		ScorerHost:     defaultHost,
		EmbeddingModel: "embeddinggemma",
		ScorerModel:    "qwen2.5:3b",
		APIKey:         "none",
		Dimensions:     768,
	}
}

// NewConfig creates a Config with the default values and applies the provided
// options. This is the recommended way to create a Config with custom
// settings.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("https://api.openai.com/v1"),
//	    WithProviderName("openai"),
//	    WithEmbeddingModel("text-embedding-3-small"),
//	    WithDimensions(1536),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It automatically adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/") + "/v1"
	}
	if c.ScorerHost != "" && !strings.HasSuffix(c.ScorerHost, "/v1") {
		c.ScorerHost = strings.TrimSuffix(c.ScorerHost, "/") + "/v1"
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.ProviderName == "" {
		return errors.New("ai config: ProviderName is required")
	}
	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.APIKey == "" {
		return errors.New("ai config: APIKey is required")
	}
	if c.Dimensions < 1 {
		return errors.New("ai config: Dimensions must be positive")
	}
	return nil
}
