package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/siherrmann/geoalert/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPromptConfig(t *testing.T) {
	cfg := DefaultPromptConfig()

	assert.Equal(t, "No results found", cfg.NoResults.For(model.LanguageEnglish))
	assert.Equal(t, "لا توجد نتائج", cfg.NoResults.For(model.LanguageArabic))
	assert.Equal(t, "No current alerts", cfg.NoAlerts.For(model.LanguageEnglish))
	assert.Equal(t, "لا توجد تنبيهات حالية", cfg.NoAlerts.For(model.LanguageArabic))
	assert.Equal(t, "Error generating response", cfg.GenerationError.For(model.LanguageEnglish))
	assert.Equal(t, 0.1, cfg.Temperature)
	assert.Equal(t, 500, cfg.MaxTokens)
	assert.Contains(t, cfg.SystemPrompt.En, "Do not provide any information beyond the data")
}

func TestLoadPromptConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("Empty path returns defaults", func(t *testing.T) {
		cfg, err := LoadPromptConfig("")
		require.NoError(t, err)
		assert.Equal(t, DefaultPromptConfig(), cfg)
	})

	t.Run("Overrides are merged with defaults", func(t *testing.T) {
		path := filepath.Join(dir, "prompts.yaml")
		content := `prompts:
  no_results:
    en: "Nothing matched your query"
  temperature: 0.3
  max_tokens: 300
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		cfg, err := LoadPromptConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "Nothing matched your query", cfg.NoResults.En)
		assert.Equal(t, "لا توجد نتائج", cfg.NoResults.Ar, "Expected missing Arabic text to keep the default")
		assert.Equal(t, 0.3, cfg.Temperature)
		assert.Equal(t, 300, cfg.MaxTokens)
		assert.Equal(t, DefaultPromptConfig().SystemPrompt, cfg.SystemPrompt)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadPromptConfig(filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("Empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		require.NoError(t, os.WriteFile(path, nil, 0600))

		_, err := LoadPromptConfig(path)
		assert.Error(t, err)
	})

	t.Run("Invalid temperature", func(t *testing.T) {
		path := filepath.Join(dir, "hot.yaml")
		require.NoError(t, os.WriteFile(path, []byte("prompts:\n  temperature: 5\n"), 0600))

		_, err := LoadPromptConfig(path)
		assert.ErrorContains(t, err, "temperature")
	})

	t.Run("Malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("prompts: [unclosed"), 0600))

		_, err := LoadPromptConfig(path)
		assert.Error(t, err)
	})
}

func TestNewPipeline(t *testing.T) {
	e := NewEmbedder(nil, nil, 3, 0, nil)
	g := NewAnswerGenerator(nil, DefaultPromptConfig(), 0, nil)

	p := NewPipeline(e, g)
	assert.Same(t, e, p.Embedder)
	assert.Same(t, g, p.Generator)
	assert.Equal(t, 3, p.Embedder.Dimension())
}
