package ledger

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shipcycle/internal/models"
)

var (
	ErrConfigInvalid   = errors.New("ledger config invalid")
	ErrRequestFailed   = errors.New("ledger request failed")
	ErrResponseInvalid = errors.New("ledger response invalid")
	ErrPayoutRejected  = errors.New("ledger payout rejected")
)

// Config 账务网关配置
type Config struct {
	Endpoint  string `json:"endpoint"`   // 网关地址，如 https://ledger.example.com
	Token     string `json:"token"`      // API Token
	TimeoutMS int    `json:"timeout_ms"` // 请求超时（毫秒）
}

func (c *Config) normalize() {
	c.Endpoint = strings.TrimRight(strings.TrimSpace(c.Endpoint), "/")
	c.Token = strings.TrimSpace(c.Token)
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 15000
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("%w: token is required", ErrConfigInvalid)
	}
	return nil
}

// Provider 平台账务退款通道
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider 创建账务退款通道
func NewProvider(cfg Config) (*Provider, error) {
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
	}, nil
}

// Name 通道标识
func (p *Provider) Name() string {
	return "ledger"
}

// Execute 向账务网关提交退款打款。
// 携带退款记录的幂等键，网关侧同键重复提交返回同一笔流水。
func (p *Provider) Execute(refund *models.RefundRecord) (string, error) {
	if refund == nil {
		return "", ErrConfigInvalid
	}

	params := map[string]interface{}{
		"refund_no":       refund.RefundNo,
		"order_id":        refund.OrderID,
		"amount":          refund.Amount.String(),
		"currency":        refund.Currency,
		"idempotency_key": refund.IdempotencyKey,
	}
	params["signature"] = Sign(params, p.cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(p.cfg.TimeoutMS)*time.Millisecond)
	defer cancel()

	respBytes, err := p.postJSON(ctx, p.cfg.Endpoint+"/api/v1/payout/create", params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	var resp struct {
		StatusCode int    `json:"status_code"`
		Message    string `json:"message"`
		Data       struct {
			PayoutID string `json:"payout_id"`
			Status   string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("%w: %s", ErrPayoutRejected, resp.Message)
	}
	if resp.Data.PayoutID == "" {
		return "", fmt.Errorf("%w: missing payout_id", ErrResponseInvalid)
	}
	return resp.Data.PayoutID, nil
}

// Sign 生成签名。
// 非空参数按键名升序以 key=value&... 拼接，末尾直接追加 Token，MD5 后转小写。
func Sign(params map[string]interface{}, token string) string {
	var keys []string
	for k, v := range params {
		if k == "signature" {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, params[k]))
	}

	sum := md5.Sum([]byte(strings.Join(pairs, "&") + token))
	return strings.ToLower(hex.EncodeToString(sum[:]))
}

func (p *Provider) postJSON(ctx context.Context, endpoint string, params map[string]interface{}) ([]byte, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
