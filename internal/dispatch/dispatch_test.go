package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FLANsa/clinic-ai-bot/internal/dialogue"
	"github.com/FLANsa/clinic-ai-bot/internal/handoff"
	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

type echoHandler struct {
	mu    sync.Mutex
	calls int
	res   dialogue.Result
}

func (h *echoHandler) Handle(_ context.Context, channel, userID, message string) dialogue.Result {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	res := h.res
	if res.ReplyText == "" {
		res.ReplyText = "echo: " + message
	}
	return res
}

type chanSink struct {
	replies chan Reply
	err     error
}

func (s *chanSink) Deliver(_ context.Context, r Reply) error {
	s.replies <- r
	return s.err
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []string
}

func (r *statusRecorder) ObserveDispatch(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *statusRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statuses...)
}

func newTestDispatcher(t *testing.T, handler Handler, sink ReplySink, obs Observer) (*Dispatcher, *MemoryQueue) {
	t.Helper()
	queue := NewMemoryQueue(8)
	d := New(NewProcessor(handler, nil), queue, sink, obs, logging.Default(),
		WithWorkerCount(2),
		WithReceiveBatchSize(1),
		WithReceiveWaitSeconds(0),
	)
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })
	return d, queue
}

func TestDispatcher_ProcessWaitsForReply(t *testing.T) {
	handler := &echoHandler{res: dialogue.Result{Intent: dialogue.IntentBooking, ContextUsed: true}}
	d, _ := newTestDispatcher(t, handler, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := d.Process(ctx, Job{Channel: "whatsapp", UserID: "966500000000", Message: "book"})
	require.NoError(t, err)
	assert.Equal(t, "echo: book", reply.Text)
	assert.Equal(t, dialogue.IntentBooking, reply.Intent)
	assert.True(t, reply.ContextUsed)
	assert.NotEmpty(t, reply.JobID)
}

func TestDispatcher_SubmitDeliversToSink(t *testing.T) {
	sink := &chanSink{replies: make(chan Reply, 1)}
	obs := &statusRecorder{}
	d, _ := newTestDispatcher(t, &echoHandler{}, sink, obs)

	id, err := d.Submit(context.Background(), Job{ID: "job-1", Channel: "instagram", UserID: "ig-1", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)

	select {
	case r := <-sink.replies:
		assert.Equal(t, "job-1", r.JobID)
		assert.Equal(t, "echo: hi", r.Text)
		assert.Equal(t, "instagram", r.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("reply was not delivered")
	}

	require.Eventually(t, func() bool {
		s := obs.snapshot()
		return len(s) == 1 && s[0] == "delivered"
	}, time.Second, 10*time.Millisecond)
}

func TestDispatcher_DropsUndecodableJobs(t *testing.T) {
	obs := &statusRecorder{}
	handler := &echoHandler{}
	_, queue := newTestDispatcher(t, handler, nil, obs)

	require.NoError(t, queue.Send(context.Background(), "{not json"))
	require.NoError(t, queue.Send(context.Background(), `{"message":"no id"}`))

	require.Eventually(t, func() bool { return len(obs.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"decode_failed", "decode_failed"}, obs.snapshot())
	assert.Zero(t, handler.calls)
}

func TestDispatcher_RejectsWorkAfterShutdown(t *testing.T) {
	d, _ := newTestDispatcher(t, &echoHandler{}, nil, nil)
	require.NoError(t, d.Shutdown(context.Background()))

	_, err := d.Submit(context.Background(), Job{Message: "late"})
	assert.ErrorIs(t, err, ErrDispatcherClosed)
	_, err = d.Process(context.Background(), Job{Message: "late"})
	assert.ErrorIs(t, err, ErrDispatcherClosed)
}

func TestDispatcher_ProducerOnly(t *testing.T) {
	queue := NewMemoryQueue(1)
	d := New(NewProcessor(&echoHandler{}, nil), queue, nil, nil, nil, WithoutWorkers())
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })

	_, err := d.Submit(context.Background(), Job{Channel: "web", UserID: "u", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, queue.Len())

	_, err = d.Process(context.Background(), Job{Message: "hi"})
	assert.Error(t, err)
}

func TestProcessor_RecordsHandoffs(t *testing.T) {
	store := handoff.NewMemoryStore()
	p := NewProcessor(&echoHandler{res: dialogue.Result{ReplyText: "sorry", Unrecognized: true, NeedsHandoff: true}},
		handoff.NewRecorder(store, logging.Default()))

	reply := p.Process(context.Background(), Job{ID: "j", Channel: "web", UserID: "u", Message: "??"})
	assert.True(t, reply.NeedsHandoff)

	open, err := store.ListOpen(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, open, 1)
	assert.Len(t, store.Unanswered(), 1)
}

func TestMemoryQueue_ReceiveBatchesAndTimesOut(t *testing.T) {
	q := NewMemoryQueue(0)
	ctx := context.Background()
	for _, body := range []string{"a", "b", "c"} {
		require.NoError(t, q.Send(ctx, body))
	}

	msgs, err := q.Receive(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Body)
	assert.NotEmpty(t, msgs[0].ReceiptHandle)

	msgs, err = q.Receive(ctx, 5, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	start := time.Now()
	msgs, err = q.Receive(ctx, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestMemoryQueue_ReceiveHonoursCancellation(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Receive(ctx, 1, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeSQS struct {
	sent     []string
	deleted  []string
	received *sqs.ReceiveMessageOutput
	err      error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.received, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueue(t *testing.T) {
	api := &fakeSQS{received: &sqs.ReceiveMessageOutput{Messages: []sqstypes.Message{
		{MessageId: aws.String("m1"), Body: aws.String(`{"id":"j1"}`), ReceiptHandle: aws.String("r1")},
	}}}
	q := newSQSQueue(api, "https://sqs.me-south-1.amazonaws.com/123/clinic-conversations")
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "payload"))
	assert.Equal(t, []string{"payload"}, api.sent)

	msgs, err := q.Receive(ctx, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, []Message{{ID: "m1", Body: `{"id":"j1"}`, ReceiptHandle: "r1"}}, msgs)

	require.NoError(t, q.Delete(ctx, "r1"))
	require.NoError(t, q.Delete(ctx, ""))
	assert.Equal(t, []string{"r1"}, api.deleted)

	api.err = errors.New("throttled")
	assert.ErrorContains(t, q.Send(ctx, "x"), "failed to send SQS message")
	_, err = q.Receive(ctx, 1, 0)
	assert.ErrorContains(t, err, "failed to receive SQS messages")
}

func TestCallbackSink(t *testing.T) {
	var (
		gotBody Reply
		gotKey  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		if gotBody.UserID == "reject" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewCallbackSink(srv.URL, srv.Client())

	err := sink.Deliver(context.Background(), Reply{JobID: "j1", Channel: "whatsapp", UserID: "u1", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "j1", gotKey)
	assert.Equal(t, "hello", gotBody.Text)

	err = sink.Deliver(context.Background(), Reply{JobID: "j2", UserID: "reject"})
	assert.ErrorContains(t, err, "502")
}
