package sse_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-gateway/internal/models"
	"payment-gateway/internal/sse"
)

func TestEmitReachesPaymentAndOrderSubscribers(t *testing.T) {
	emitter := sse.NewPaymentEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paymentChan := emitter.SubscribeToPayment(ctx, "pay_1")
	orderChan := emitter.SubscribeToOrder(ctx, "order_1")
	otherChan := emitter.SubscribeToPayment(ctx, "pay_other")

	emitter.EmitPaymentEvent(models.PaymentEvent{
		Type:      "payment.succeeded",
		PaymentID: "pay_1",
		OrderID:   "order_1",
	})

	select {
	case event := <-paymentChan:
		assert.Equal(t, "payment.succeeded", event.Type)
	case <-time.After(time.Second):
		t.Fatal("payment subscriber never received the event")
	}

	select {
	case event := <-orderChan:
		assert.Equal(t, "pay_1", event.PaymentID)
	case <-time.After(time.Second):
		t.Fatal("order subscriber never received the event")
	}

	// Unrelated subscribers see nothing.
	select {
	case <-otherChan:
		t.Fatal("unrelated subscriber received an event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscriberRemovedOnContextCancel(t *testing.T) {
	emitter := sse.NewPaymentEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	ch := emitter.SubscribeToPayment(ctx, "pay_2")
	cancel()

	// The channel is closed once the cleanup goroutine runs.
	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond, "channel was not closed after cancel")

	// Emitting afterwards must not panic.
	emitter.EmitPaymentEvent(models.PaymentEvent{PaymentID: "pay_2", OrderID: "order_2"})
}

func TestSlowSubscriberDoesNotBlockEmit(t *testing.T) {
	emitter := sse.NewPaymentEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = emitter.SubscribeToPayment(ctx, "pay_3")

	// More events than the channel buffer holds; Emit must not stall.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			emitter.EmitPaymentEvent(models.PaymentEvent{PaymentID: "pay_3"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on a slow subscriber")
	}
}
