// internal/whatsapp/client.go
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"relay-go/internal/config"
	"relay-go/internal/relaytypes"
)

// APIError 表示 WhatsApp Cloud API 返回的业务错误。
type APIError struct {
	Status  int
	Code    int
	Subcode int
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("whatsapp api error (status %d, code %d): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("whatsapp api error (status %d): %s", e.Status, e.Message)
}

// Client 是 WhatsApp Cloud API 的客户端。
// 凭证通过配置注入，不读进程环境，方便用假凭证 + httptest 单测。
type Client struct {
	baseURL     string // 已拼好 版本/phoneNumberID 的前缀
	accessToken string
	httpClient  *http.Client
}

// NewClient 创建一个新的 Cloud API 客户端。
func NewClient(cfg config.WhatsAppConfig) *Client {
	base := strings.TrimSuffix(cfg.APIBaseURL, "/")
	if base == "" {
		base = "https://graph.facebook.com"
	}
	version := cfg.APIVersion
	if version == "" {
		version = "v20.0"
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     fmt.Sprintf("%s/%s/%s", base, version, cfg.PhoneNumberID),
		accessToken: cfg.AccessToken,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// UploadMedia 把文件字节以 multipart 形式上传到媒体接口，返回媒体句柄。
// part 的 Content-Type 必须显式设置为嗅探后的类型，Graph 端靠它识别媒体格式，
// 依赖 Go 默认的 application/octet-stream 会被拒收。
func (c *Client) UploadMedia(ctx context.Context, fileName, mimeType string, data []byte) (string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(fileName)))
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("writing file bytes: %w", err)
	}
	if err := mw.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", fmt.Errorf("writing form field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/media", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	var out uploadResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &APIError{Status: http.StatusOK, Message: "no media ID returned"}
	}
	return out.ID, nil
}

// SendMedia 发送一条引用已上传媒体句柄的消息，返回 WhatsApp 的消息 ID。
// caption 只附加到 image/video；document 必须携带 filename。
func (c *Client) SendMedia(ctx context.Context, to string, msgType relaytypes.MessageType, mediaID, caption, fileName string) (string, error) {
	media := &mediaObject{ID: mediaID}
	payload := messagePayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               CleanPhoneNumber(to),
		Type:             string(msgType),
	}

	switch msgType {
	case relaytypes.ImageMessageType:
		media.Caption = caption
		payload.Image = media
	case relaytypes.VideoMessageType:
		media.Caption = caption
		payload.Video = media
	case relaytypes.AudioMessageType:
		payload.Audio = media
	case relaytypes.DocumentMessageType:
		media.Filename = fileName
		payload.Document = media
	default:
		return "", fmt.Errorf("unsupported media message type: %s", msgType)
	}

	return c.postMessage(ctx, payload)
}

// SendText 发送一条文本消息。quotedMessageID 非空时作为被回复消息的外部 ID。
func (c *Client) SendText(ctx context.Context, to, body string, previewURL bool, quotedMessageID string) (string, error) {
	payload := messagePayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               CleanPhoneNumber(to),
		Type:             string(relaytypes.TextMessageType),
		Text:             &textObject{Body: body, PreviewURL: previewURL},
	}
	if quotedMessageID != "" {
		payload.Context = &messageContext{MessageID: quotedMessageID}
	}
	return c.postMessage(ctx, payload)
}

// MarkRead 把一条入站消息标记为已读。
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	payload := messagePayload{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
	}
	_, err := c.postJSON(ctx, payload)
	return err
}

// postMessage 提交 /messages 请求并返回第一条消息 ID。
func (c *Client) postMessage(ctx context.Context, payload messagePayload) (string, error) {
	raw, err := c.postJSON(ctx, payload)
	if err != nil {
		return "", err
	}
	var out sendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decoding send response: %w", err)
	}
	if len(out.Messages) == 0 {
		return "", &APIError{Status: http.StatusOK, Message: "no message ID returned"}
	}
	return out.Messages[0].ID, nil
}

func (c *Client) postJSON(ctx context.Context, payload messagePayload) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding message payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	var raw json.RawMessage
	if err := c.do(req, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// do 执行请求；非 2xx 时解析 Graph 错误信封并返回 *APIError。
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp api request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading whatsapp api response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var envelope graphErrorEnvelope
		if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Subcode = envelope.Error.Subcode
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding whatsapp api response: %w", err)
		}
	}
	return nil
}

// CleanPhoneNumber 去掉号码中的空格和连字符。
func CleanPhoneNumber(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, "-", "")
}

func escapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
