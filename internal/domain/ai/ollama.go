package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	ollamaTemperature = 0.2
	ollamaNumPredict  = 160
)

// OllamaProvider talks to a locally running Ollama server. The chat
// endpoint is tried first; older servers without it answer 404 and the
// call falls back to the generate endpoint.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

func (p *OllamaProvider) Name() string { return "local-model" }

// Available probes the tags endpoint. It feeds a startup log line only;
// augmentation relies on per-call fallback, not on this probe.
func (p *OllamaProvider) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (p *OllamaProvider) Rationale(ctx context.Context, req RationaleRequest) (string, error) {
	system := "You are assisting a nurse with clinical documentation. " +
		"Answer in two sentences or fewer, plain prose, no markdown."
	var b strings.Builder
	fmt.Fprintf(&b, "Explain briefly why the care-plan goal %q addresses the nursing diagnosis %q.",
		req.Goal, req.DiagnosisLabel)
	if len(req.Interventions) > 0 {
		fmt.Fprintf(&b, " Planned interventions: %s.", strings.Join(req.Interventions, "; "))
	}
	if len(req.Observations) > 0 {
		fmt.Fprintf(&b, " Assessment findings: %s.", strings.Join(req.Observations, "; "))
	}
	return p.chat(ctx, system, b.String())
}

func (p *OllamaProvider) Rephrase(ctx context.Context, text string) (string, error) {
	system := "You rephrase clinical care-plan text for readability. " +
		"Keep the clinical meaning exactly; return only the rephrased text."
	out, err := p.chat(ctx, system, text)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", fmt.Errorf("ollama: empty completion")
	}
	return out, nil
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

func (p *OllamaProvider) chat(ctx context.Context, system, user string) (string, error) {
	body := struct {
		Model    string          `json:"model"`
		Stream   bool            `json:"stream"`
		Options  ollamaOptions   `json:"options"`
		Messages []ollamaMessage `json:"messages"`
	}{
		Model:   p.model,
		Options: ollamaOptions{Temperature: ollamaTemperature, NumPredict: ollamaNumPredict},
		Messages: []ollamaMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	status, raw, err := p.post(ctx, "/api/chat", body)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return p.generate(ctx, system, user)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("ollama: chat returned status %d", status)
	}

	var out struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("ollama: decode chat response: %w", err)
	}
	return strings.TrimSpace(out.Message.Content), nil
}

func (p *OllamaProvider) generate(ctx context.Context, system, user string) (string, error) {
	body := struct {
		Model   string        `json:"model"`
		Prompt  string        `json:"prompt"`
		Stream  bool          `json:"stream"`
		Options ollamaOptions `json:"options"`
	}{
		Model:   p.model,
		Prompt:  fmt.Sprintf("### System\n%s\n\n### User\n%s\n", system, user),
		Options: ollamaOptions{Temperature: ollamaTemperature, NumPredict: ollamaNumPredict},
	}

	status, raw, err := p.post(ctx, "/api/generate", body)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("ollama: generate returned status %d", status)
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("ollama: decode generate response: %w", err)
	}
	return strings.TrimSpace(out.Response), nil
}

func (p *OllamaProvider) post(ctx context.Context, path string, body any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}
