package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"akibot/internal/domain"

	"go.uber.org/zap"
)

// Config は、JSON APIクライアントの設定を定義します
type Config struct {
	BaseURL    string
	Credential domain.Credential
	// Timeout が0の場合はトランスポートのデフォルトに従います
	Timeout time.Duration
	// HTTPClient が指定された場合はTimeoutより優先されます
	HTTPClient *http.Client
}

// Client は、Bearer認証付きでJSONをPOSTするクライアントです
// リトライは行いません
type Client struct {
	baseURL    string
	credential domain.Credential
	httpClient *http.Client
	logger     *zap.Logger
}

// Response は、HTTP応答のステータスと本文です
type Response struct {
	StatusCode int
	Body       []byte
}

// New は新しいClientインスタンスを作成します
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		credential: cfg.Credential,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Endpoint は、パスから完全なURLを組み立てます
func (c *Client) Endpoint(path string) string {
	return c.baseURL + path
}

// PostJSON は、bodyをJSONにシリアライズしてPOSTし、応答本文を返します
// 応答のステータスコードは検査せず、本文の解釈は呼び出し側に任せます
func (c *Client) PostJSON(ctx context.Context, op, path string, body any) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, domain.InvalidRequestError(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return nil, domain.InvalidRequestError(op, err)
	}
	req.Header.Set("Authorization", c.credential.BearerToken())
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("APIにリクエスト中",
		zap.String("op", op),
		zap.String("url", req.URL.String()),
		zap.Int("payload_bytes", len(payload)))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.TransportError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.TransportError(op, fmt.Errorf("応答本文の読み込みに失敗: %w", err))
	}

	c.logger.Debug("APIから応答を取得",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Int("body_bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}
