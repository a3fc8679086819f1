package translate

import "slices"

// Auto asks the backend to detect the source language.
const Auto = "auto"

// targetLanguages is the closed set of languages offered in the UI.
var targetLanguages = []string{"en", "es", "fr", "de", "it", "pt", "ru", "ja", "ko", "zh-cn", "zh-tw", "ar"}

// SourceLanguages lists valid source codes; "auto" first.
func SourceLanguages() []string {
	return append([]string{Auto}, targetLanguages...)
}

// TargetLanguages lists valid target codes. "auto" is never a target.
func TargetLanguages() []string {
	return slices.Clone(targetLanguages)
}

func ValidSource(code string) bool {
	return code == Auto || slices.Contains(targetLanguages, code)
}

func ValidTarget(code string) bool {
	return slices.Contains(targetLanguages, code)
}
