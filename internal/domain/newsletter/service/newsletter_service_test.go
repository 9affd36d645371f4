package service

import (
	"context"
	"testing"

	"blog_engine/internal/domain/newsletter/model"
	"blog_engine/internal/domain/newsletter/repository"
	"blog_engine/internal/pkg/testdb"
	"blog_engine/pkg/metrics"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (NewsletterService, *gorm.DB) {
	db := testdb.Open(t, &model.Newsletter{}, &model.ContactMessage{})
	return NewNewsletterService(repository.NewNewsletterRepository(db), metrics.NewMetricsCollector()), db
}

func load(t *testing.T, db *gorm.DB, email string) model.Newsletter {
	var sub model.Newsletter
	require.NoError(t, db.Where("email = ?", email).First(&sub).Error)
	return sub
}

func TestSubscribeStateMachine(t *testing.T) {
	ctx := context.Background()
	svc, db := setup(t)

	r, err := svc.Subscribe(ctx, "  Reader@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, &SubscribeResult{Success: true, Message: MsgSubscribed}, r)

	sub := load(t, db, "reader@example.com")
	assert.True(t, sub.IsActive)
	_, err = uuid.Parse(sub.UnsubscribeToken)
	assert.NoError(t, err)

	// active → active 不修改任何字段
	r, err = svc.Subscribe(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, &SubscribeResult{Success: false, Message: MsgAlready}, r)

	require.NoError(t, svc.Unsubscribe(ctx, sub.UnsubscribeToken))
	assert.False(t, load(t, db, "reader@example.com").IsActive)

	// 重复取消仍然成功
	require.NoError(t, svc.Unsubscribe(ctx, sub.UnsubscribeToken))

	r, err = svc.Subscribe(ctx, "READER@example.com")
	require.NoError(t, err)
	assert.Equal(t, &SubscribeResult{Success: true, Message: MsgResubscribed}, r)

	again := load(t, db, "reader@example.com")
	assert.True(t, again.IsActive)
	assert.Equal(t, sub.UnsubscribeToken, again.UnsubscribeToken)

	var count int64
	require.NoError(t, db.Model(&model.Newsletter{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUnsubscribeUnknownToken(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	assert.ErrorIs(t, svc.Unsubscribe(ctx, "nope"), ErrSubscriptionNotFound)
	assert.ErrorIs(t, svc.Unsubscribe(ctx, ""), ErrSubscriptionNotFound)
}

func TestContact(t *testing.T) {
	ctx := context.Background()
	svc, db := setup(t)

	msg, err := svc.Contact(ctx, ContactInput{Name: " Ann ", Email: "Ann@Example.com", Subject: "Hi", Message: "Hello there, nice blog!"})
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)
	assert.Equal(t, "Ann", msg.Name)
	assert.Equal(t, "ann@example.com", msg.Email)

	var stored model.ContactMessage
	require.NoError(t, db.First(&stored, msg.ID).Error)
	assert.False(t, stored.IsRead)
	assert.False(t, stored.Replied)
}
