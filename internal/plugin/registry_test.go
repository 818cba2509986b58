package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handlerThatContinues(tag string) Handler {
	return func(_ context.Context, pctx *Context, payload map[string]any) (Result, error) {
		pctx.GlobalState[tag] = true
		return Result{ContinueProcessing: true, ModifiedPayload: payload}, nil
	}
}

func TestRegistryRunsInPriorityOrder(t *testing.T) {
	reg := NewRegistry(false, nil)
	var order []string

	for _, p := range []struct {
		name     string
		priority int
	}{
		{"third", 30}, {"first", 10}, {"second", 20},
	} {
		name := p.name
		reg.Register(&Plugin{
			Name:     name,
			Hook:     HookToolPreInvoke,
			Priority: p.priority,
			Mode:     ModeEnforce,
			Handler: func(_ context.Context, _ *Context, payload map[string]any) (Result, error) {
				order = append(order, name)
				return Result{ContinueProcessing: true, ModifiedPayload: payload}, nil
			},
		})
	}

	pctx := NewContext("req-1", "sess-1")
	_, err := reg.Run(context.Background(), HookToolPreInvoke, pctx, MatchRequest{ToolName: "foo"}, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestRegistryEnforceModeBlocksOnViolation(t *testing.T) {
	reg := NewRegistry(false, nil)
	reg.Register(&Plugin{
		Name:     "blocker",
		Hook:     HookToolPreInvoke,
		Priority: 10,
		Mode:     ModeEnforce,
		Handler: func(_ context.Context, _ *Context, _ map[string]any) (Result, error) {
			return Deny(Violation{Code: "BLOCKED", Reason: "nope"}), nil
		},
	})
	called := false
	reg.Register(&Plugin{
		Name:     "never-reached",
		Hook:     HookToolPreInvoke,
		Priority: 20,
		Mode:     ModeEnforce,
		Handler: func(_ context.Context, _ *Context, payload map[string]any) (Result, error) {
			called = true
			return Result{ContinueProcessing: true, ModifiedPayload: payload}, nil
		},
	})

	pctx := NewContext("req-2", "sess-1")
	_, err := reg.Run(context.Background(), HookToolPreInvoke, pctx, MatchRequest{}, map[string]any{})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestRegistryPermissiveModeLogsAndContinues(t *testing.T) {
	reg := NewRegistry(false, nil)
	reg.Register(&Plugin{
		Name:     "permissive-blocker",
		Hook:     HookToolPreInvoke,
		Priority: 10,
		Mode:     ModePermissive,
		Handler: func(_ context.Context, _ *Context, _ map[string]any) (Result, error) {
			return Deny(Violation{Code: "SOFT", Reason: "would block"}), nil
		},
	})
	reg.Register(&Plugin{
		Name:     "after",
		Hook:     HookToolPreInvoke,
		Priority: 20,
		Mode:     ModeEnforce,
		Handler:  handlerThatContinues("after-ran"),
	})

	pctx := NewContext("req-3", "sess-1")
	_, err := reg.Run(context.Background(), HookToolPreInvoke, pctx, MatchRequest{}, map[string]any{})
	require.NoError(t, err)
	assert.True(t, pctx.GlobalState["after-ran"].(bool))
}

func TestRegistryDisabledPluginSkipped(t *testing.T) {
	reg := NewRegistry(false, nil)
	called := false
	reg.Register(&Plugin{
		Name: "off", Hook: HookToolPreInvoke, Priority: 10, Mode: ModeDisabled,
		Handler: func(_ context.Context, _ *Context, payload map[string]any) (Result, error) {
			called = true
			return Result{ContinueProcessing: true}, nil
		},
	})

	pctx := NewContext("req-4", "sess-1")
	_, err := reg.Run(context.Background(), HookToolPreInvoke, pctx, MatchRequest{}, map[string]any{})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestRegistryConditionsFilterApplicability(t *testing.T) {
	reg := NewRegistry(false, nil)
	called := false
	reg.Register(&Plugin{
		Name: "scoped", Hook: HookToolPreInvoke, Priority: 10, Mode: ModeEnforce,
		Conditions: Conditions{ToolNames: []string{"special-tool"}},
		Handler: func(_ context.Context, _ *Context, payload map[string]any) (Result, error) {
			called = true
			return Result{ContinueProcessing: true, ModifiedPayload: payload}, nil
		},
	})

	pctx := NewContext("req-5", "sess-1")
	_, err := reg.Run(context.Background(), HookToolPreInvoke, pctx, MatchRequest{ToolName: "other-tool"}, map[string]any{})
	require.NoError(t, err)
	assert.False(t, called)

	_, err = reg.Run(context.Background(), HookToolPreInvoke, pctx, MatchRequest{ToolName: "special-tool"}, map[string]any{})
	require.NoError(t, err)
	assert.True(t, called)
}

type staticElicitor struct {
	resp ElicitationResponse
	err  error
}

func (s staticElicitor) Elicit(_ context.Context, _ string, _ ElicitationRequest) (ElicitationResponse, error) {
	return s.resp, s.err
}

func TestRegistryElicitationDeclineBlocks(t *testing.T) {
	reg := NewRegistry(false, staticElicitor{resp: ElicitationResponse{Outcome: ElicitationDeclined}})
	reg.Register(&Plugin{
		Name: "confirm-register", Hook: HookServerPreRegister, Priority: 10, Mode: ModeEnforce,
		Handler: func(_ context.Context, pctx *Context, _ map[string]any) (Result, error) {
			if _, answered := pctx.ElicitationResponses["confirm-register"]; answered {
				return Deny(Violation{Code: "PRODUCTION_REGISTRATION_DECLINED", Reason: "declined"}), nil
			}
			return Result{ElicitationRequest: &ElicitationRequest{Message: "confirm?"}}, nil
		},
	})

	pctx := NewContext("req-6", "sess-1")
	_, err := reg.Run(context.Background(), HookServerPreRegister, pctx, MatchRequest{}, map[string]any{})
	assert.Error(t, err)
}

func TestRegistryElicitationAcceptReinvokes(t *testing.T) {
	reg := NewRegistry(false, staticElicitor{resp: ElicitationResponse{Outcome: ElicitationAccepted, Data: map[string]any{"ok": true}}})
	invocations := 0
	reg.Register(&Plugin{
		Name: "confirm-register", Hook: HookServerPreRegister, Priority: 10, Mode: ModeEnforce,
		Handler: func(_ context.Context, pctx *Context, payload map[string]any) (Result, error) {
			invocations++
			if _, answered := pctx.ElicitationResponses["confirm-register"]; answered {
				return Result{ContinueProcessing: true, ModifiedPayload: payload}, nil
			}
			return Result{ElicitationRequest: &ElicitationRequest{Message: "confirm?"}}, nil
		},
	})

	pctx := NewContext("req-7", "sess-1")
	_, err := reg.Run(context.Background(), HookServerPreRegister, pctx, MatchRequest{}, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 2, invocations)
}

func TestRegistryFatalErrorFromEnforce(t *testing.T) {
	reg := NewRegistry(false, nil)
	reg.Register(&Plugin{
		Name: "erroring", Hook: HookToolPreInvoke, Priority: 10, Mode: ModeEnforce,
		Handler: func(_ context.Context, _ *Context, _ map[string]any) (Result, error) {
			return Result{}, errors.New("boom")
		},
	})

	pctx := NewContext("req-8", "sess-1")
	_, err := reg.Run(context.Background(), HookToolPreInvoke, pctx, MatchRequest{}, map[string]any{})
	assert.Error(t, err)
}

func TestRegistryEnforceIgnoreErrorSwallowsUnexpectedErrors(t *testing.T) {
	reg := NewRegistry(false, nil)
	reg.Register(&Plugin{
		Name: "flaky", Hook: HookToolPreInvoke, Priority: 10, Mode: ModeEnforceIgnoreError,
		Handler: func(_ context.Context, _ *Context, _ map[string]any) (Result, error) {
			return Result{}, errors.New("transient")
		},
	})
	reg.Register(&Plugin{
		Name: "after", Hook: HookToolPreInvoke, Priority: 20, Mode: ModeEnforce,
		Handler: handlerThatContinues("after-ran"),
	})

	pctx := NewContext("req-9", "sess-1")
	_, err := reg.Run(context.Background(), HookToolPreInvoke, pctx, MatchRequest{}, map[string]any{})
	require.NoError(t, err)
	assert.True(t, pctx.GlobalState["after-ran"].(bool))
}
