package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"DustMite-Agent/internal/llm"
)

const (
	defaultBaseURL   = "https://generativelanguage.googleapis.com"
	defaultModelName = "gemini-2.0-flash"
	defaultTimeout   = 60 * time.Second
)

// Config 描述了调用 Gemini generateContent API 所需的信息。
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client 通过 HTTP 调用 Google Gemini 提供的大模型能力。
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient 根据配置创建 Gemini 客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 Gemini API Key")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Decide 调用 Gemini 生成结构化的调度建议。
func (c *Client) Decide(ctx context.Context, req llm.DecisionRequest) (*llm.Decision, error) {
	prompt := llm.DecisionSystemPrompt + "\n\n" + llm.BuildDecisionPrompt(req)
	content, err := c.generate(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	var structured struct {
		Action string `json:"action"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFence(content)), &structured); err != nil {
		return nil, fmt.Errorf("解析模型决策失败: %w", err)
	}

	return &llm.Decision{
		Action: strings.TrimSpace(structured.Action),
		Reason: strings.TrimSpace(structured.Reason),
	}, nil
}

// Explain 调用 Gemini 基于历史记录回答自由提问。
func (c *Client) Explain(ctx context.Context, question string, history []llm.HistoryEntry) (string, error) {
	return c.generate(ctx, llm.BuildExplainPrompt(question, history), false)
}

func (c *Client) generate(ctx context.Context, prompt string, wantJSON bool) (string, error) {
	type part struct {
		Text string `json:"text"`
	}
	type contentBlock struct {
		Parts []part `json:"parts"`
	}

	body := map[string]any{
		"contents": []contentBlock{{Parts: []part{{Text: prompt}}}},
	}
	if wantJSON {
		body["generationConfig"] = map[string]any{
			"responseMimeType": "application/json",
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("序列化 Gemini 请求失败: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("构建 Gemini 请求失败: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("请求 Gemini 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("Gemini 返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("解析 Gemini 响应失败: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("Gemini 响应中没有有效的 candidates")
	}

	content := strings.TrimSpace(decoded.Candidates[0].Content.Parts[0].Text)
	if content == "" {
		return "", errors.New("Gemini 响应内容为空")
	}
	return content, nil
}

var _ llm.Client = (*Client)(nil)
