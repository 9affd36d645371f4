package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"blog_engine/internal/domain/newsletter/model"
	"blog_engine/internal/domain/newsletter/repository"
	"blog_engine/pkg/logger"
	"blog_engine/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

// 订阅结果提示
const (
	MsgSubscribed   = "Successfully subscribed!"
	MsgResubscribed = "Resubscribed successfully!"
	MsgAlready      = "Already subscribed!"
	MsgInvalidEmail = "Invalid email address!"
)

// SubscribeResult 订阅接口的响应体
type SubscribeResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ContactInput 联系留言
type ContactInput struct {
	Name    string
	Email   string
	Subject string
	Message string
}

type NewsletterService interface {
	Subscribe(ctx context.Context, email string) (*SubscribeResult, error)
	Unsubscribe(ctx context.Context, token string) error
	Contact(ctx context.Context, in ContactInput) (*model.ContactMessage, error)
}

type newsletterService struct {
	repo    repository.NewsletterRepository
	metrics *metrics.MetricsCollector
}

func NewNewsletterService(repo repository.NewsletterRepository, m *metrics.MetricsCollector) NewsletterService {
	return &newsletterService{repo: repo, metrics: m}
}

// Subscribe absent→active 新建，inactive→active 重新激活，active 时不做修改
func (s *newsletterService) Subscribe(ctx context.Context, email string) (*SubscribeResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	sub, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sub = &model.Newsletter{Email: email, IsActive: true, UnsubscribeToken: uuid.NewString()}
		err = s.repo.Create(ctx, sub)
		if err == nil {
			s.record("subscribed")
			logger.L().Info("newsletter subscribed", zap.Uint("id", sub.ID))
			return &SubscribeResult{Success: true, Message: MsgSubscribed}, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("create subscription: %w", err)
		}
		// 并发订阅同一邮箱，按已存在处理
		sub, err = s.repo.GetByEmail(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}

	changed, err := s.repo.Activate(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("activate subscription: %w", err)
	}
	if !changed {
		s.record("already")
		return &SubscribeResult{Success: false, Message: MsgAlready}, nil
	}
	s.record("reactivated")
	return &SubscribeResult{Success: true, Message: MsgResubscribed}, nil
}

// Unsubscribe 持有令牌即可取消，重复取消也视为成功
func (s *newsletterService) Unsubscribe(ctx context.Context, token string) error {
	if token == "" {
		return ErrSubscriptionNotFound
	}
	if err := s.repo.DeactivateByToken(ctx, token); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubscriptionNotFound
		}
		return fmt.Errorf("unsubscribe: %w", err)
	}
	s.record("unsubscribed")
	return nil
}

func (s *newsletterService) Contact(ctx context.Context, in ContactInput) (*model.ContactMessage, error) {
	msg := &model.ContactMessage{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.ToLower(strings.TrimSpace(in.Email)),
		Subject: strings.TrimSpace(in.Subject),
		Message: strings.TrimSpace(in.Message),
	}
	if err := s.repo.CreateContact(ctx, msg); err != nil {
		return nil, fmt.Errorf("save contact message: %w", err)
	}
	return msg, nil
}

func (s *newsletterService) record(event string) {
	if s.metrics != nil {
		s.metrics.RecordNewsletter(event)
	}
}
