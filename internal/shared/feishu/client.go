package feishu

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// =============================================================================
// BotClient 飞书群自定义机器人
// 通过 webhook 向群聊推送文本或卡片消息，配置了签名密钥时附带签名校验
// =============================================================================

// BotClient 飞书群机器人客户端
type BotClient struct {
	webhookURL string       // 机器人 webhook 地址
	secret     string       // 签名密钥，可为空
	httpClient *http.Client // HTTP客户端
	now        func() time.Time
}

// NewBotClient 创建群机器人客户端
func NewBotClient(webhookURL, secret string) *BotClient {
	return &BotClient{
		webhookURL: webhookURL,
		secret:     secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// sign 计算签名：以 timestamp+"\n"+secret 为密钥对空串做 HmacSHA256 后 base64
func sign(timestamp int64, secret string) string {
	key := strconv.FormatInt(timestamp, 10) + "\n" + secret
	h := hmac.New(sha256.New, []byte(key))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// SendText 发送纯文本消息
func (c *BotClient) SendText(ctx context.Context, text string) error {
	return c.post(ctx, BotMessage{
		MsgType: "text",
		Content: &BotText{Text: text},
	})
}

// SendCard 发送交互式卡片
func (c *BotClient) SendCard(ctx context.Context, card InteractiveCard) error {
	return c.post(ctx, BotMessage{
		MsgType: "interactive",
		Card:    &card,
	})
}

// post 执行 webhook 请求并检查飞书统一错误码
func (c *BotClient) post(ctx context.Context, msg BotMessage) error {
	if c.secret != "" {
		ts := c.now().Unix()
		msg.Timestamp = strconv.FormatInt(ts, 10)
		msg.Sign = sign(ts, c.secret)
	}

	bodyBytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应体失败: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("飞书webhook HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var baseResp BaseResponse
	if err := json.Unmarshal(respBody, &baseResp); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if baseResp.Code != 0 {
		return fmt.Errorf("飞书机器人错误[%d]: %s", baseResp.Code, baseResp.Msg)
	}
	return nil
}
