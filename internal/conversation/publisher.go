package conversation

import (
	"context"
	"time"

	"github.com/nao1215/chat/pkg/event"
	"github.com/nao1215/chat/pkg/httpclient"
)

// publishPath はPub/Subサービスの配信エンドポイント。
const publishPath = "/api/v1/publish"

// publishRequest はPub/Subサービスへの配信リクエスト。
type publishRequest struct {
	Channel string       `json:"channel"`
	Data    *event.Event `json:"data"`
}

// HubPublisher はPub/SubサービスのHTTP APIを通じて変更イベントを配信する。
type HubPublisher struct {
	client *httpclient.Client
}

// NewHubPublisher は新しいHubPublisherを生成する。
// apiKeyはPub/Subサービスに対するアプリケーション資格情報。
func NewHubPublisher(baseURL, apiKey string, timeout time.Duration) *HubPublisher {
	return &HubPublisher{
		client: httpclient.New(baseURL, httpclient.WithAPIKey(apiKey), httpclient.WithTimeout(timeout)),
	}
}

// Publish はチャンネルに変更イベントを配信する。
func (p *HubPublisher) Publish(ctx context.Context, channel string, ev *event.Event) error {
	return p.client.PostJSON(ctx, publishPath, publishRequest{Channel: channel, Data: ev}, nil)
}
