package events

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/mocks"
)

func TestBus_DeliversByKind(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var wallet, friend []domain.Event
	bus.Subscribe(domain.EventWallet, func(e domain.Event) { wallet = append(wallet, e) })
	bus.Subscribe(domain.EventFriend, func(e domain.Event) { friend = append(friend, e) })

	bus.Publish(domain.WalletEvent{LearnerID: "l1", Balance: 30, Delta: 30})

	require.Len(t, wallet, 1)
	assert.Empty(t, friend)
	assert.Equal(t, int64(30), wallet[0].(domain.WalletEvent).Balance)
}

func TestBus_SubscriptionOrder(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var got []int
	for i := 1; i <= 3; i++ {
		i := i
		bus.Subscribe(domain.EventAnswer, func(domain.Event) { got = append(got, i) })
	}
	bus.Publish(domain.AnswerEvent{})

	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestBus_UnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus(zap.NewNop())

	calls := 0
	sub := bus.Subscribe(domain.EventWallet, func(domain.Event) { calls++ })
	other := bus.Subscribe(domain.EventWallet, func(domain.Event) {})

	sub.Unsubscribe()
	sub.Unsubscribe()
	bus.Publish(domain.WalletEvent{})

	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, bus.Subscribers(domain.EventWallet))

	other.Unsubscribe()
	assert.Equal(t, 0, bus.Subscribers(domain.EventWallet))
}

func TestBus_HandlerMayUnsubscribeItself(t *testing.T) {
	bus := NewBus(zap.NewNop())

	calls := 0
	var sub interface{ Unsubscribe() }
	sub = bus.Subscribe(domain.EventFriend, func(domain.Event) {
		calls++
		sub.Unsubscribe()
	})

	bus.Publish(domain.FriendEvent{})
	bus.Publish(domain.FriendEvent{})

	assert.Equal(t, 1, calls)
}

func TestBus_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewBus(zap.NewNop())

	reached := false
	bus.Subscribe(domain.EventAnswer, func(domain.Event) { panic("boom") })
	bus.Subscribe(domain.EventAnswer, func(domain.Event) { reached = true })

	assert.NotPanics(t, func() { bus.Publish(domain.AnswerEvent{}) })
	assert.True(t, reached)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var mu sync.Mutex
	n := 0
	bus.Subscribe(domain.EventAnswer, func(domain.Event) {
		mu.Lock()
		n++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(domain.AnswerEvent{})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, n)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "kogoto.wallet.update", Subject(domain.EventWallet))
	assert.Equal(t, "kogoto.answer", Subject(domain.EventAnswer))
}

func TestRelay_PublishesJSON(t *testing.T) {
	// Arrange
	bus := NewBus(zap.NewNop())
	mq := mocks.NewMockMessageQueue()
	relay := NewRelay(bus, mq, zap.NewNop(), domain.EventAnswer, domain.EventWallet)

	// Act
	bus.Publish(domain.AnswerEvent{LearnerID: "l1", ItemID: "あはれ#あわれ", Correct: true})
	bus.Publish(domain.FriendEvent{LearnerID: "l1"})

	// Assert
	msgs := mq.GetPublishedMessages("kogoto.answer")
	require.Len(t, msgs, 1)
	var got domain.AnswerEvent
	require.NoError(t, json.Unmarshal(msgs[0], &got))
	assert.Equal(t, "あはれ#あわれ", got.ItemID)
	assert.Empty(t, mq.GetPublishedMessages("kogoto.friend.update"))

	relay.Close()
	bus.Publish(domain.AnswerEvent{})
	assert.Len(t, mq.GetPublishedMessages("kogoto.answer"), 1)
}

func TestRelay_PublishErrorIsSwallowed(t *testing.T) {
	bus := NewBus(zap.NewNop())
	mq := mocks.NewMockMessageQueue()
	mq.PublishFunc = func(string, []byte) error { return errors.New("broker down") }
	NewRelay(bus, mq, zap.NewNop(), domain.EventWallet)

	assert.NotPanics(t, func() { bus.Publish(domain.WalletEvent{}) })
}
