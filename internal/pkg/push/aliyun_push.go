package push

import (
	"encoding/json"
	"errors"
	"strings"

	"blog_engine/internal/pkg/config"

	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/requests"
	"github.com/aliyun/alibaba-cloud-sdk-go/services/push"
)

// MaxAccountsPerPush 阿里云单次按账号推送的上限
const MaxAccountsPerPush = 100

var ErrPushNotConfigured = errors.New("push config is missing")

type PushService interface {
	// PushToAccount accountIDs 不超过 MaxAccountsPerPush 个
	PushToAccount(accountIDs []string, title, body string, extParameters map[string]string) error
}

type AliyunPushService struct {
	client *push.Client
	appKey int64
}

func NewAliyunPushService(cfg config.PushConfig) (*AliyunPushService, error) {
	if !cfg.Enabled() {
		return nil, ErrPushNotConfigured
	}

	client, err := push.NewClientWithAccessKey(
		cfg.RegionID,
		cfg.AccessKeyID,
		cfg.AccessKeySecret,
	)
	if err != nil {
		return nil, err
	}

	return &AliyunPushService{
		client: client,
		appKey: cfg.AppKey,
	}, nil
}

func (s *AliyunPushService) PushToAccount(accountIDs []string, title, body string, extParameters map[string]string) error {
	if len(accountIDs) == 0 {
		return nil
	}
	if len(accountIDs) > MaxAccountsPerPush {
		return errors.New("too many accounts in one push")
	}
	return s.sendPush("ACCOUNT", strings.Join(accountIDs, ","), title, body, extParameters)
}

func (s *AliyunPushService) sendPush(target, targetValue, title, body string, extParameters map[string]string) error {
	request := push.CreatePushRequest()
	request.AppKey = requests.NewInteger(int(s.appKey))
	request.Target = target
	request.TargetValue = targetValue
	request.Title = title
	request.Body = body
	request.DeviceType = "ALL"  // iOS & Android
	request.PushType = "NOTICE" // 通知

	// 扩展参数 (JSON 序列化)
	if len(extParameters) > 0 {
		extJSON, _ := json.Marshal(extParameters)
		request.AndroidExtParameters = string(extJSON)
		request.IOSExtParameters = string(extJSON)
	}

	_, err := s.client.Push(request)
	return err
}

// New 配置齐全时返回阿里云推送，未配置时返回 nil
func New(cfg config.PushConfig) (PushService, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	svc, err := NewAliyunPushService(cfg)
	if err != nil {
		return nil, err
	}
	return svc, nil
}
