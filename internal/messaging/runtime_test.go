package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startRuntime(t *testing.T, h Handler) *Runtime {
	t.Helper()
	rt := NewRuntime(8, zap.NewNop())
	if h != nil {
		rt.Listen(h)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rt.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return rt
}

func TestRuntime_SingleReplyPerMessage(t *testing.T) {
	rt := startRuntime(t, func(ctx context.Context, msg Message) Reply {
		var data GenerateCommentData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return Failure(err)
		}
		return Reply{Success: true, Comment: "re: " + data.PostCaption}
	})

	msg, err := NewMessage(ActionGenerateComment, GenerateCommentData{PostCaption: "hi", Tone: "friendly", Model: "gpt-4o"})
	require.NoError(t, err)

	reply, err := rt.SendMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, Reply{Success: true, Comment: "re: hi"}, reply)
}

func TestRuntime_NoListenerFails(t *testing.T) {
	rt := startRuntime(t, nil)

	reply, err := rt.SendMessage(context.Background(), Message{Action: ActionGenerateComment})
	require.NoError(t, err)
	assert.False(t, reply.Success)
	assert.Contains(t, reply.Error, "no listener")
}

func TestRuntime_DispatchesConcurrently(t *testing.T) {
	release := make(chan struct{})
	rt := startRuntime(t, func(ctx context.Context, msg Message) Reply {
		if msg.Action == "slow" {
			<-release
		}
		return Reply{Success: true, Comment: string(msg.Action)}
	})

	slowDone := make(chan Reply, 1)
	go func() {
		r, _ := rt.SendMessage(context.Background(), Message{Action: "slow"})
		slowDone <- r
	}()

	// A fast message completes while the slow one is still in flight.
	reply, err := rt.SendMessage(context.Background(), Message{Action: "fast"})
	require.NoError(t, err)
	assert.Equal(t, "fast", reply.Comment)

	close(release)
	select {
	case r := <-slowDone:
		assert.Equal(t, "slow", r.Comment)
	case <-time.After(2 * time.Second):
		t.Fatal("slow message never replied")
	}
}

func TestRuntime_ManyConcurrentSenders(t *testing.T) {
	rt := startRuntime(t, func(ctx context.Context, msg Message) Reply {
		return Reply{Success: true, Comment: string(msg.Action)}
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			action := Action(string(rune('a' + i%26)))
			reply, err := rt.SendMessage(context.Background(), Message{Action: action})
			assert.NoError(t, err)
			assert.Equal(t, string(action), reply.Comment)
		}(i)
	}
	wg.Wait()
}

func TestRuntime_SendAfterCloseFails(t *testing.T) {
	rt := startRuntime(t, func(ctx context.Context, msg Message) Reply {
		return Reply{Success: true}
	})
	rt.Close()

	_, err := rt.SendMessage(context.Background(), Message{Action: ActionGenerateComment})
	require.ErrorIs(t, err, ErrClosed)
}

func TestRuntime_CallerContextCancelled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	rt := startRuntime(t, func(ctx context.Context, msg Message) Reply {
		<-block
		return Reply{Success: true}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := rt.SendMessage(ctx, Message{Action: ActionGenerateComment})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
