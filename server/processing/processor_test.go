package processing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/chatrelay/errors"
	"github.com/teilomillet/chatrelay/server/generation"
	"github.com/teilomillet/chatrelay/server/mocks"
	"go.uber.org/zap/zaptest"
)

func TestProcess(t *testing.T) {
	tests := []struct {
		name        string
		history     History
		message     string
		reply       string
		genErr      error
		wantErr     error
		wantHistory History
	}{
		{
			name:    "first turn",
			message: "Hello",
			reply:   "Hi there!",
			wantHistory: History{
				{Role: RoleUser, Content: "Hello"},
				{Role: RoleAssistant, Content: "Hi there!"},
			},
		},
		{
			name: "existing history",
			history: History{
				{Role: RoleUser, Content: "a"},
				{Role: RoleAssistant, Content: "b"},
			},
			message: "c",
			reply:   "d",
			wantHistory: History{
				{Role: RoleUser, Content: "a"},
				{Role: RoleAssistant, Content: "b"},
				{Role: RoleUser, Content: "c"},
				{Role: RoleAssistant, Content: "d"},
			},
		},
		{
			name:    "empty generated text",
			message: "Hello",
			reply:   "",
			wantErr: errors.ErrEmptyGeneration,
		},
		{
			name:    "transport failure",
			message: "Hello",
			genErr:  errors.NewTransportError("req-1", "generation request failed", fmt.Errorf("connection refused")),
			wantErr: errors.ErrTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := mocks.NewMockGenerator(func(ctx context.Context, req generation.Request) (*generation.Result, error) {
				if tt.genErr != nil {
					return nil, tt.genErr
				}
				return &generation.Result{GeneratedText: tt.reply, ResponseTime: 0.5}, nil
			})

			p := NewProcessor(gen, zaptest.NewLogger(t))
			history, result, err := p.Process(context.Background(), "req-1", tt.history, tt.message)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, history)
				assert.Nil(t, result)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantHistory, history)
			assert.Equal(t, tt.reply, result.GeneratedText)
		})
	}
}

func TestProcess_PromptIsLatestMessageOnly(t *testing.T) {
	gen := mocks.NewMockGenerator(func(ctx context.Context, req generation.Request) (*generation.Result, error) {
		return &generation.Result{GeneratedText: "ok"}, nil
	})

	p := NewProcessor(gen, nil)
	history := History{
		{Role: RoleUser, Content: "earlier question"},
		{Role: RoleAssistant, Content: "earlier answer"},
	}
	_, _, err := p.Process(context.Background(), "req-1", history, "new question")
	require.NoError(t, err)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "new question", calls[0].Prompt)
}

func TestProcess_DoesNotMutateInput(t *testing.T) {
	gen := mocks.NewMockGenerator(func(ctx context.Context, req generation.Request) (*generation.Result, error) {
		return &generation.Result{GeneratedText: "reply"}, nil
	})

	// Spare capacity would let a careless append write into the caller's array.
	backing := make(History, 1, 8)
	backing[0] = Message{Role: RoleUser, Content: "first"}
	snapshot := backing.Clone()

	p := NewProcessor(gen, nil)
	out, _, err := p.Process(context.Background(), "req-1", backing, "second")
	require.NoError(t, err)

	assert.Equal(t, snapshot, backing)
	assert.Len(t, backing, 1)
	assert.Len(t, out, 3)
	assert.Equal(t, Message{Role: RoleUser, Content: "first"}, backing[:2][0])
	assert.Equal(t, Message{}, backing[:2][1])
}

func TestProcess_ForwardsOptions(t *testing.T) {
	gen := mocks.NewMockGenerator(func(ctx context.Context, req generation.Request) (*generation.Result, error) {
		return &generation.Result{GeneratedText: "ok"}, nil
	})

	p := NewProcessor(gen, nil,
		generation.WithMaxNewTokens(32),
		generation.WithTemperature(0),
		generation.WithDoSample(false),
	)
	_, _, err := p.Process(context.Background(), "req-1", nil, "hi")
	require.NoError(t, err)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 32, calls[0].MaxNewTokens)
	assert.Equal(t, 0.0, calls[0].Temperature)
	assert.Equal(t, generation.DefaultTopP, calls[0].TopP)
	assert.False(t, calls[0].DoSample)
}

func TestHistoryClone(t *testing.T) {
	var nilHistory History
	cloned := nilHistory.Clone()
	assert.NotNil(t, cloned)
	assert.Len(t, cloned, 0)
}
