package feishu

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// Client is the Feishu API client used to mirror published content
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	logger    *zap.Logger
}

// NewClient creates a Feishu client
func NewClient(appID, appSecret string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret, lark.WithLogLevel(larkcore.LogLevelWarn)),
		logger:    logger.Named("feishu"),
	}
}

// SendText sends a plain text message to a chat
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("encode text content: %w", err)
	}
	return c.send(ctx, chatID, larkim.MsgTypeText, string(content))
}

// SendPost sends a rich text message with a title and one paragraph per line
func (c *Client) SendPost(ctx context.Context, chatID, title string, lines []string) error {
	paragraphs := make([][]map[string]any, 0, len(lines))
	for _, line := range lines {
		paragraphs = append(paragraphs, []map[string]any{{"tag": "text", "text": line}})
	}
	content, err := json.Marshal(map[string]any{
		"zh_cn": map[string]any{
			"title":   title,
			"content": paragraphs,
		},
	})
	if err != nil {
		return fmt.Errorf("encode post content: %w", err)
	}
	return c.send(ctx, chatID, larkim.MsgTypePost, string(content))
}

func (c *Client) send(ctx context.Context, chatID, msgType, content string) error {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}

	c.logger.Debug("message sent", zap.String("chat_id", chatID), zap.String("type", msgType))
	return nil
}
