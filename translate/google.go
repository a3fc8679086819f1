package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const googleEndpoint = "https://translate.googleapis.com/translate_a/single"

// Google uses the public web translation endpoint. No API key is needed.
type Google struct {
	endpoint string
	http     *http.Client
}

type GoogleOption func(*Google)

func WithTimeout(d time.Duration) GoogleOption {
	return func(g *Google) { g.http.Timeout = d }
}

// WithEndpoint points the client at a different server.
func WithEndpoint(u string) GoogleOption {
	return func(g *Google) { g.endpoint = u }
}

func NewGoogle(opts ...GoogleOption) *Google {
	g := &Google{
		endpoint: googleEndpoint,
		http:     &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Google) Translate(ctx context.Context, text, source, target string) (Result, error) {
	if err := checkLanguages(source, target); err != nil {
		return Result{}, &TranslationError{Backend: BackendGoogle, Err: err}
	}
	out, detected, err := g.query(ctx, text, googleCode(source), googleCode(target))
	if err != nil {
		return Result{}, &TranslationError{Backend: BackendGoogle, Err: err}
	}
	return Result{Text: out, SourceLang: source, DetectedLang: normaliseCode(detected)}, nil
}

func (g *Google) query(ctx context.Context, text, sl, tl string) (string, string, error) {
	form := url.Values{
		"client": {"gtx"},
		"sl":     {sl},
		"tl":     {tl},
		"dt":     {"t"},
		"q":      {text},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", "", fmt.Errorf("read response: %w", err)
	}
	return parseGoogleResponse(body)
}

// parseGoogleResponse decodes the positional array format:
// [[["translated","original",...],...], null, "detected", ...].
func parseGoogleResponse(body []byte) (string, string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", "", fmt.Errorf("decode response: %w", err)
	}
	if len(raw) == 0 {
		return "", "", fmt.Errorf("empty response")
	}

	var segments [][]any
	if err := json.Unmarshal(raw[0], &segments); err != nil {
		return "", "", fmt.Errorf("decode segments: %w", err)
	}
	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			sb.WriteString(s)
		}
	}

	var detected string
	if len(raw) > 2 {
		_ = json.Unmarshal(raw[2], &detected)
	}
	return sb.String(), detected, nil
}

// googleCode maps UI codes onto the endpoint's spelling (zh-cn -> zh-CN).
func googleCode(code string) string {
	if lang, region, ok := strings.Cut(code, "-"); ok {
		return lang + "-" + strings.ToUpper(region)
	}
	return code
}

func normaliseCode(code string) string {
	return strings.ToLower(code)
}
