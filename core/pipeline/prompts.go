package pipeline

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/siherrmann/geoalert/model"
	"gopkg.in/yaml.v3"
)

// LocalizedText holds a text in Arabic and English.
type LocalizedText struct {
	Ar string `yaml:"ar"`
	En string `yaml:"en"`
}

// For returns the text in the given language.
func (l LocalizedText) For(lang model.Language) string {
	return lang.Localized(l.Ar, l.En)
}

// PromptConfig captures the answer prompts, canned answers and generation parameters.
type PromptConfig struct {
	SystemPrompt    LocalizedText `yaml:"system_prompt"`
	NoResults       LocalizedText `yaml:"no_results"`
	NoAlerts        LocalizedText `yaml:"no_alerts"`
	GenerationError LocalizedText `yaml:"generation_error"`
	Temperature     float64       `yaml:"temperature"`
	MaxTokens       int           `yaml:"max_tokens"`
}

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 500
)

// DefaultPromptConfig returns the baked-in prompts and generation defaults.
func DefaultPromptConfig() PromptConfig {
	return PromptConfig{
		SystemPrompt: LocalizedText{
			Ar: `أنت مساعد احترافي ثنائي اللغة للتنبيهات الأمنية. الردود يجب أن تكون بالعربية فقط. المطلوب:
1. اذكر نوع التنبيه أولاً
2. حالة التنبيه الحالية
3. المناطق المتأثرة
4. المخاطر المحددة
5. إذا لم توجد بيانات، قل ذلك بوضوح
6. استخدم تنسيق النقاط بدون ماركداون
7. لا تقدم أي معلومات غير موجودة في البيانات
مثال:
- نوع التنبيه: فيضانات
- الحالة: نشط
- المناطق: تبوك، ضبا
- المخاطر: فيضان سريع، انزلاقات تربة`,
			En: `You are a professional bilingual safety alert assistant. Responses must be in English. Requirements:
1. Start with alert type
2. Current status
3. Affected areas
4. Specific hazards
5. If no data, state this clearly
6. Use bullet points without markdown
7. Do not provide any information beyond the data
Example:
- Alert type: Floods
- Status: Active
- Areas: Tabuk, Duba
- Hazards: Flash flooding, land slides`,
		},
		NoResults:       LocalizedText{Ar: "لا توجد نتائج", En: "No results found"},
		NoAlerts:        LocalizedText{Ar: "لا توجد تنبيهات حالية", En: "No current alerts"},
		GenerationError: LocalizedText{Ar: "حدث خطأ في توليد الرد", En: "Error generating response"},
		Temperature:     defaultTemperature,
		MaxTokens:       defaultMaxTokens,
	}
}

// LoadPromptConfig reads a YAML file and merges it with the defaults.
// An empty path returns the defaults.
func LoadPromptConfig(path string) (PromptConfig, error) {
	cfg := DefaultPromptConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("empty prompt config file")
	}

	var parsed struct {
		Prompts PromptConfig `yaml:"prompts"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return cfg, err
	}

	merged := MergePromptConfig(cfg, parsed.Prompts)
	if merged.Temperature < 0 || merged.Temperature > 2 {
		return cfg, fmt.Errorf("temperature must be within [0,2], got %v", merged.Temperature)
	}

	return merged, nil
}

// MergePromptConfig overlays non-empty fields onto the base config.
func MergePromptConfig(base PromptConfig, override PromptConfig) PromptConfig {
	base.SystemPrompt = mergeLocalized(base.SystemPrompt, override.SystemPrompt)
	base.NoResults = mergeLocalized(base.NoResults, override.NoResults)
	base.NoAlerts = mergeLocalized(base.NoAlerts, override.NoAlerts)
	base.GenerationError = mergeLocalized(base.GenerationError, override.GenerationError)
	if override.Temperature != 0 {
		base.Temperature = override.Temperature
	}
	if override.MaxTokens > 0 {
		base.MaxTokens = override.MaxTokens
	}
	return base
}

func mergeLocalized(base LocalizedText, override LocalizedText) LocalizedText {
	if strings.TrimSpace(override.Ar) != "" {
		base.Ar = override.Ar
	}
	if strings.TrimSpace(override.En) != "" {
		base.En = override.En
	}
	return base
}
