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


package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/poiesic/retrievit/ai"
)

const scorerSystemPrompt = `You judge how well a passage answers a query.
Respond with JSON only: {"score": N} where N is an integer from 0 (irrelevant)
to 10 (directly and completely answers the query). No other text.`

// Scorer implements ai.RelevanceScorer using OpenAI-compatible chat APIs.
// It asks the model for an integer relevance score and maps it onto [0, 1].
type Scorer struct {
	client llms.Model
	logger *slog.Logger
}

// scoreResponse matches the JSON shape expected from the model.
type scoreResponse struct {
	Score float64 `json:"score"`
}

// NewScorer creates a relevance scorer from the given configuration.
func NewScorer(config *ai.Config) (*Scorer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.ScorerHost == "" || config.ScorerModel == "" {
		return nil, errors.New("ai config: ScorerHost and ScorerModel are required for scoring")
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ScorerHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ScorerModel),
	)
	if err != nil {
		return nil, err
	}

	return &Scorer{
		client: client,
		logger: slog.Default().With("component", "openai-scorer"),
	}, nil
}

// ScorePair scores how well text answers query, in [0, 1].
func (s *Scorer) ScorePair(ctx context.Context, query, text string) (float32, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(scorerSystemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(fmt.Sprintf("Query: %s\n\nPassage: %s", query, text)),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result scoreResponse
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := s.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			s.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return 0, err
		}

		if len(response.Choices) < 1 {
			s.logger.Debug("no choices returned from model")
			return 0, errors.New("scorer returned no choices")
		}

		// Strip markdown code fences if present
		responseText := strings.TrimSpace(response.Choices[0].Content)
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)

		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			s.logger.Warn("error parsing scorer response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		s.logger.Error("failed to parse scorer response after retries", "err", lastErr)
		return 0, lastErr
	}

	score := float32(result.Score / 10)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}

var _ ai.RelevanceScorer = (*Scorer)(nil)
