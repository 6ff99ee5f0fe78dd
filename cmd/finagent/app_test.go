package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/castlemilk/finagent/internal/config"
	"github.com/castlemilk/finagent/internal/profile"
	"github.com/castlemilk/finagent/internal/rag"
	"github.com/castlemilk/finagent/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedderConfig(t *testing.T) {
	tests := []struct {
		name      string
		embedding config.EmbeddingConfig
		llm       config.LLMConfig
		settings  *store.Settings
		want      rag.EmbedderConfig
	}{
		{
			name:      "config only",
			embedding: config.EmbeddingConfig{Provider: "hash"},
			want:      rag.EmbedderConfig{Provider: "hash"},
		},
		{
			name:      "settings override provider and clear model",
			embedding: config.EmbeddingConfig{Provider: "hash", Model: "ignored"},
			settings:  &store.Settings{LLMProvider: "openai", EmbeddingProvider: "ollama"},
			want:      rag.EmbedderConfig{Provider: "ollama"},
		},
		{
			name:      "key borrowed from saved llm settings",
			embedding: config.EmbeddingConfig{Provider: "openai"},
			settings:  &store.Settings{LLMProvider: "openai", LLMAPIKey: "sk-saved"},
			want:      rag.EmbedderConfig{Provider: "openai", APIKey: "sk-saved"},
		},
		{
			name:      "key borrowed from llm config",
			embedding: config.EmbeddingConfig{Provider: "gemini", Model: "text-embedding-004"},
			llm:       config.LLMConfig{Provider: "gemini", APIKey: "g-key"},
			want:      rag.EmbedderConfig{Provider: "gemini", APIKey: "g-key", Model: "text-embedding-004"},
		},
		{
			name:      "explicit embedding key wins",
			embedding: config.EmbeddingConfig{Provider: "openai", APIKey: "sk-embed"},
			llm:       config.LLMConfig{Provider: "openai", APIKey: "sk-llm"},
			want:      rag.EmbedderConfig{Provider: "openai", APIKey: "sk-embed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := store.NewMemoryStore()
			if tt.settings != nil {
				require.NoError(t, s.SaveSettings(ctx, tt.settings))
			}
			cfg := config.Default()
			cfg.Embedding = tt.embedding
			cfg.LLM = tt.llm

			assert.Equal(t, tt.want, embedderConfig(ctx, cfg, s))
		})
	}
}

func TestPrintAmounts_LargestFirst(t *testing.T) {
	var buf bytes.Buffer
	printAmounts(&buf, map[string]decimal.Decimal{
		"food":          decimal.NewFromFloat(42.5),
		"entertainment": decimal.NewFromFloat(15.99),
		"gas":           decimal.NewFromInt(60),
		"other":         decimal.NewFromFloat(15.99),
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "gas")
	assert.Contains(t, lines[0], "60.00")
	assert.Contains(t, lines[1], "food")
	assert.Contains(t, lines[2], "entertainment")
	assert.Contains(t, lines[3], "other")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &profile.Summary{
		NetWorth:        decimal.NewFromInt(1000),
		MonthlyIncome:   decimal.NewFromInt(200),
		MonthlyExpenses: decimal.NewFromFloat(15.99),
		CreditAccounts: []profile.CreditAccount{
			{Institution: "Example Bank", AccountNumber: "****1234", Balance: decimal.NewFromInt(-350)},
		},
		RecentTransactions: []profile.RecentTransaction{
			{Date: "2024-05-01", Description: "NETFLIX", Category: "entertainment", Amount: decimal.NewFromFloat(-15.99)},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "1000.00")
	assert.Contains(t, out, "Example Bank")
	assert.Contains(t, out, "****1234")
	assert.Contains(t, out, "-350.00")
	assert.Contains(t, out, "NETFLIX")
	assert.NotContains(t, out, "Investments:")
}
