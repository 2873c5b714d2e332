package sse

import (
	"context"
	"sync"

	"payment-gateway/internal/models"
)

// PaymentEventEmitter manages SSE connections and broadcasts payment status
// transitions to subscribed clients. Async submitters use it to observe the
// terminal state without polling.
type PaymentEventEmitter struct {
	// key: paymentID
	paymentClients     map[string][]chan models.PaymentEvent
	paymentClientMutex sync.RWMutex

	// key: orderID
	orderClients     map[string][]chan models.PaymentEvent
	orderClientMutex sync.RWMutex
}

func NewPaymentEventEmitter() *PaymentEventEmitter {
	return &PaymentEventEmitter{
		paymentClients: make(map[string][]chan models.PaymentEvent),
		orderClients:   make(map[string][]chan models.PaymentEvent),
	}
}

// SubscribeToPayment adds a client to a payment's status events.
func (e *PaymentEventEmitter) SubscribeToPayment(ctx context.Context, paymentID string) chan models.PaymentEvent {
	clientChan := make(chan models.PaymentEvent, 10)

	e.paymentClientMutex.Lock()
	e.paymentClients[paymentID] = append(e.paymentClients[paymentID], clientChan)
	e.paymentClientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removePaymentClient(paymentID, clientChan)
	}()

	return clientChan
}

// SubscribeToOrder adds a client to all payment events for an order.
func (e *PaymentEventEmitter) SubscribeToOrder(ctx context.Context, orderID string) chan models.PaymentEvent {
	clientChan := make(chan models.PaymentEvent, 10)

	e.orderClientMutex.Lock()
	e.orderClients[orderID] = append(e.orderClients[orderID], clientChan)
	e.orderClientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeOrderClient(orderID, clientChan)
	}()

	return clientChan
}

// EmitPaymentEvent broadcasts an event to all subscribed clients. Sends are
// non-blocking; a slow client misses the event rather than stalling the
// emitter.
func (e *PaymentEventEmitter) EmitPaymentEvent(event models.PaymentEvent) {
	e.paymentClientMutex.RLock()
	clients := e.paymentClients[event.PaymentID]
	e.paymentClientMutex.RUnlock()

	for _, clientChan := range clients {
		select {
		case clientChan <- event:
		default:
		}
	}

	e.orderClientMutex.RLock()
	orderClients := e.orderClients[event.OrderID]
	e.orderClientMutex.RUnlock()

	for _, clientChan := range orderClients {
		select {
		case clientChan <- event:
		default:
		}
	}
}

func (e *PaymentEventEmitter) removePaymentClient(paymentID string, clientChan chan models.PaymentEvent) {
	e.paymentClientMutex.Lock()
	defer e.paymentClientMutex.Unlock()

	clients := e.paymentClients[paymentID]
	for i, ch := range clients {
		if ch == clientChan {
			e.paymentClients[paymentID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(e.paymentClients[paymentID]) == 0 {
		delete(e.paymentClients, paymentID)
	}
}

func (e *PaymentEventEmitter) removeOrderClient(orderID string, clientChan chan models.PaymentEvent) {
	e.orderClientMutex.Lock()
	defer e.orderClientMutex.Unlock()

	clients := e.orderClients[orderID]
	for i, ch := range clients {
		if ch == clientChan {
			e.orderClients[orderID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(e.orderClients[orderID]) == 0 {
		delete(e.orderClients, orderID)
	}
}
