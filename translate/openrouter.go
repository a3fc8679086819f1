package translate

import (
	"context"
	"fmt"
	"strings"

	"kiana/llm"
)

var languageNames = map[string]string{
	"en": "English", "es": "Spanish", "fr": "French", "de": "German", "it": "Italian",
	"pt": "Portuguese", "ru": "Russian", "ja": "Japanese", "ko": "Korean",
	"zh-cn": "Simplified Chinese", "zh-tw": "Traditional Chinese", "ar": "Arabic",
}

// OpenRouter translates with a chat model.
type OpenRouter struct {
	client *llm.Client
}

func NewOpenRouter(client *llm.Client) *OpenRouter {
	return &OpenRouter{client: client}
}

func (o *OpenRouter) Translate(ctx context.Context, text, source, target string) (Result, error) {
	if err := checkLanguages(source, target); err != nil {
		return Result{}, &TranslationError{Backend: BackendOpenRouter, Err: err}
	}
	out, err := o.client.QueryText(ctx, instruction(source, target), text)
	if err != nil {
		return Result{}, &TranslationError{Backend: BackendOpenRouter, Err: err}
	}
	return Result{Text: strings.TrimSpace(out), SourceLang: source}, nil
}

func instruction(source, target string) string {
	from := "the detected language"
	if source != Auto {
		from = languageNames[source]
	}
	return fmt.Sprintf("Translate the following text from %s to %s. "+
		"Return ONLY the translation, preserving line breaks. No explanations, no quotes, no markdown.",
		from, languageNames[target])
}
