package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-intra/portal-events-api/pkg/config"
)

func testMessage() Message {
	return Message{
		Kind: KindRegistrationConfirmation,
		Occurrence: OccurrencePayload{
			ID:      "occ-1",
			Title:   "Summer Party",
			StartAt: time.Date(2024, 6, 10, 18, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2024, 6, 10, 22, 0, 0, 0, time.UTC),
		},
		Attendee: AttendeePayload{Name: "Jane", Email: "jane@example.com"},
	}
}

func TestDispatcherDeliversToSink(t *testing.T) {
	var mu sync.Mutex
	var received []Message
	done := make(chan struct{}, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		done <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(config.NotifierConfig{SinkURL: srv.URL, Workers: 1}, nil)
	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.Enqueue(testMessage()))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sink never received the message")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, KindRegistrationConfirmation, received[0].Kind)
	assert.Equal(t, "jane@example.com", received[0].Attendee.Email)
}

func TestDispatcherRetriesFailedDelivery(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{}, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		failing := attempts == 1
		mu.Unlock()
		if failing {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		done <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(config.NotifierConfig{
		SinkURL:    srv.URL,
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
	}, nil)
	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.Enqueue(testMessage()))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery was never retried")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	d := NewDispatcher(config.NotifierConfig{SinkURL: "http://localhost:0"}, nil)
	require.Error(t, d.Enqueue(testMessage()))
}

func TestEnqueueDropsWhenBufferFull(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(block)

	d := NewDispatcher(config.NotifierConfig{SinkURL: srv.URL, Workers: 1, BufferSize: 1}, nil)
	d.Start(context.Background())
	defer d.Stop()

	// first message occupies the worker, second fills the buffer; one of the
	// following must be rejected without blocking
	var rejected bool
	for i := 0; i < 5; i++ {
		if err := d.Enqueue(testMessage()); err != nil {
			rejected = true
			break
		}
	}
	assert.True(t, rejected)
}
