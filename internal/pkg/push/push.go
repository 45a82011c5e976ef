package push

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"coupon_hub/internal/pkg/config"

	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/requests"
	"github.com/aliyun/alibaba-cloud-sdk-go/services/push"
	"github.com/goccy/go-json"
)

// Message 推送内容
type Message struct {
	Title string
	Body  string
	Extra map[string]string
}

// Notifier 按账号推送通知，账号为本地用户 ID
type Notifier interface {
	NotifyAccounts(ctx context.Context, accountIDs []string, msg Message) error
}

// 阿里云按账号推送每次最多 100 个账号
const maxAccountsPerPush = 100

var ErrNotConfigured = errors.New("push config is missing")

type pushClient interface {
	Push(request *push.PushRequest) (*push.PushResponse, error)
}

// AliyunNotifier 阿里云移动推送
type AliyunNotifier struct {
	client pushClient
	appKey int64
}

func NewAliyunNotifier(cfg config.PushConfig) (*AliyunNotifier, error) {
	if cfg.AccessKeyID == "" || cfg.AppKey == 0 {
		return nil, ErrNotConfigured
	}

	client, err := push.NewClientWithAccessKey(cfg.RegionID, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("create push client: %w", err)
	}

	return &AliyunNotifier{client: client, appKey: cfg.AppKey}, nil
}

// New 未配置时返回 NopNotifier
func New(cfg config.PushConfig) (Notifier, error) {
	n, err := NewAliyunNotifier(cfg)
	if errors.Is(err, ErrNotConfigured) {
		return NopNotifier{}, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (n *AliyunNotifier) NotifyAccounts(ctx context.Context, accountIDs []string, msg Message) error {
	var errs []error
	for start := 0; start < len(accountIDs); start += maxAccountsPerPush {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+maxAccountsPerPush, len(accountIDs))
		if err := n.send("ACCOUNT", strings.Join(accountIDs[start:end], ","), msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *AliyunNotifier) send(target, targetValue string, msg Message) error {
	request := push.CreatePushRequest()
	request.AppKey = requests.NewInteger(int(n.appKey))
	request.Target = target
	request.TargetValue = targetValue
	request.Title = msg.Title
	request.Body = msg.Body
	request.DeviceType = "ALL"  // iOS & Android
	request.PushType = "NOTICE" // 通知

	// 扩展参数 (JSON 序列化)
	if len(msg.Extra) > 0 {
		extJSON, err := json.Marshal(msg.Extra)
		if err != nil {
			return err
		}
		request.AndroidExtParameters = string(extJSON)
		request.IOSExtParameters = string(extJSON)
	}

	_, err := n.client.Push(request)
	return err
}

// NopNotifier 不推送
type NopNotifier struct{}

func (NopNotifier) NotifyAccounts(context.Context, []string, Message) error { return nil }
