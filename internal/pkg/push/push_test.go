package push

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"coupon_hub/internal/pkg/config"

	"github.com/aliyun/alibaba-cloud-sdk-go/services/push"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	requests []*push.PushRequest
	failOn   int
}

func (r *recordingClient) Push(req *push.PushRequest) (*push.PushResponse, error) {
	r.requests = append(r.requests, req)
	if r.failOn > 0 && len(r.requests) == r.failOn {
		return nil, errors.New("throttled")
	}
	return &push.PushResponse{}, nil
}

func TestNotifyAccountsBatches(t *testing.T) {
	client := &recordingClient{}
	n := &AliyunNotifier{client: client, appKey: 1234}

	ids := make([]string, 0, 150)
	for i := 0; i < 150; i++ {
		ids = append(ids, fmt.Sprintf("user-%d", i))
	}

	err := n.NotifyAccounts(context.Background(), ids, Message{
		Title: "New coupon",
		Body:  "You received a coupon",
		Extra: map[string]string{"campaign_id": "c1"},
	})
	require.NoError(t, err)
	require.Len(t, client.requests, 2)

	first := client.requests[0]
	assert.Equal(t, "ACCOUNT", first.Target)
	assert.Len(t, strings.Split(first.TargetValue, ","), 100)
	assert.Len(t, strings.Split(client.requests[1].TargetValue, ","), 50)
	assert.JSONEq(t, `{"campaign_id":"c1"}`, first.AndroidExtParameters)
}

func TestNotifyAccountsJoinsErrors(t *testing.T) {
	client := &recordingClient{failOn: 1}
	n := &AliyunNotifier{client: client, appKey: 1}

	err := n.NotifyAccounts(context.Background(), []string{"a"}, Message{Title: "t"})
	assert.Error(t, err)
}

func TestNewWithoutConfigIsNop(t *testing.T) {
	n, err := New(config.PushConfig{})
	require.NoError(t, err)
	assert.IsType(t, NopNotifier{}, n)
	assert.NoError(t, n.NotifyAccounts(context.Background(), []string{"a"}, Message{}))
}
