package service

import (
	"Converge/internal/api/dto"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTypingFixture(ttl time.Duration) (*typingServiceImpl, *fakeTypingStore) {
	store := newFakeTypingStore()
	svc := NewTypingService(store, newFakePublisher(), ttl).(*typingServiceImpl)
	return svc, store
}

func TestTypingActorValidation(t *testing.T) {
	svc, _ := newTypingFixture(5 * time.Second)
	ctx := context.Background()

	// 主体缺失
	err := svc.SetTyping(ctx, 1, &dto.TypingReq{IsTyping: true})
	assert.ErrorIs(t, err, ErrTypingActorInvalid)

	// 主体重复
	err = svc.SetTyping(ctx, 1, &dto.TypingReq{UserID: 1, CustomerID: 2, IsTyping: true})
	assert.ErrorIs(t, err, ErrTypingActorInvalid)
}

func TestTypingSetAndGet(t *testing.T) {
	svc, _ := newTypingFixture(5 * time.Second)
	ctx := context.Background()

	require.NoError(t, svc.SetTyping(ctx, 1, &dto.TypingReq{UserID: 7, IsTyping: true}))
	require.NoError(t, svc.SetTyping(ctx, 1, &dto.TypingReq{CustomerID: 9, IsTyping: true}))

	states, err := svc.GetTyping(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, states, 2)

	// 停止输入即刻消除信号
	require.NoError(t, svc.SetTyping(ctx, 1, &dto.TypingReq{UserID: 7, IsTyping: false}))
	states, err = svc.GetTyping(ctx, 1)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, uint64(9), states[0].CustomerID)
}

func TestTypingExpiresByTimestamp(t *testing.T) {
	svc, _ := newTypingFixture(5 * time.Second)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }
	require.NoError(t, svc.SetTyping(ctx, 1, &dto.TypingReq{UserID: 7, IsTyping: true}))

	// TTL 内可见
	svc.now = func() time.Time { return base.Add(4 * time.Second) }
	states, err := svc.GetTyping(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, states, 1)

	// TTL 过后即便存储未过期也不回流
	svc.now = func() time.Time { return base.Add(5 * time.Second) }
	states, err = svc.GetTyping(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestTypingSignalRefresh(t *testing.T) {
	svc, _ := newTypingFixture(5 * time.Second)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }
	require.NoError(t, svc.SetTyping(ctx, 1, &dto.TypingReq{UserID: 7, IsTyping: true}))

	// 持续输入刷新时间戳，同一主体只保留最新信号
	svc.now = func() time.Time { return base.Add(3 * time.Second) }
	require.NoError(t, svc.SetTyping(ctx, 1, &dto.TypingReq{UserID: 7, IsTyping: true}))

	svc.now = func() time.Time { return base.Add(6 * time.Second) }
	states, err := svc.GetTyping(ctx, 1)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, base.Add(3*time.Second), states[0].Timestamp)
}
