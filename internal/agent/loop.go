package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

// errStreamInterrupted marks a stream that closed with no terminal
// chunk and no accumulated text (spec.md §4.6.2).
var errStreamInterrupted = errors.New("agent: stream interrupted with no content")

// Run drives one turn to completion (spec.md §4.6 steps 1-5): check
// autonomy limits, screen the inbound user message, then iterate the
// request/response/tool-call cycle up to MaxToolIterations times.
func (rt *Runtime) Run(ctx context.Context) models.TurnResult {
	if blocked, reason := rt.autonomy.CheckLimits(); blocked {
		rt.events.Append(models.EventAutonomyBlocked, models.EventData{
			AutonomyLevel: string(rt.autonomy.State().Level),
		}, models.SourceSystem)
		return models.TurnResult{Status: models.TurnFailed, Data: reason}
	}

	messages := rt.history()
	if idx := lastUserIndex(messages); idx >= 0 {
		outcome := rt.hooks.Run(ctx, models.HookBeforeInbound, map[string]any{"message": messages[idx].Content})
		if outcome.Blocked {
			return models.TurnResult{Status: models.TurnFailed, Data: outcome.Reason}
		}
		if patched, ok := outcome.Ctx.Data["message"].(string); ok {
			messages[idx].Content = patched
		}
	}

	// Step 3 names an optional undo checkpoint collaborator; no such
	// collaborator is defined anywhere else in the operations list or
	// the event vocabulary, so none is wired here.

	specs := rt.allToolSpecs()
	fallbackRan := false

	for iter := 0; iter < rt.cfg.MaxToolIterations; iter++ {
		messages = rt.compactIfNeeded(ctx, messages)

		req := rt.buildCompletionRequest(messages, nil)
		if rt.provider.SupportsNativeTools() {
			req.Tools = specs
		} else if !fallbackRan && len(specs) > 0 {
			req.System = strings.TrimSpace(req.System + "\n\n" + toolPromptForCapabilities(specs))
		}

		if rt.cache != nil {
			key := rt.cache.CacheKey(req.Messages, req.Model)
			if cached, ok := rt.cache.Get(key); ok {
				rt.events.Append(models.EventCacheHit, models.EventData{CacheKey: key}, models.SourceSystem)
				rt.events.Append(models.EventAgentMessage, models.EventData{Content: cached.Content}, models.SourceAgent)
				rt.runBeforeOutbound(ctx, cached.Content)
				return models.TurnResult{Status: models.TurnOK, Data: cached.Content, Usage: cached.Usage, Model: cached.Model, Cached: true}
			}
		}

		resp, err := rt.provider.Complete(ctx, req)
		if err != nil {
			rt.events.Append(models.EventError, models.EventData{Reason: err.Error()}, models.SourceSystem)
			return models.TurnResult{Status: models.TurnFailed, Data: err.Error()}
		}
		if resp.Usage != nil {
			rt.autonomy.RecordCost(resp.Model, *resp.Usage)
		}

		if len(resp.ToolCalls) == 0 && !rt.provider.SupportsNativeTools() && !fallbackRan {
			if result, ok := rt.runCodeExecutionFallback(ctx, resp); ok {
				fallbackRan = true
				rt.cacheStore(req, result)
				return result
			}
		}

		if len(resp.ToolCalls) == 0 {
			rt.cacheStore(req, models.TurnResult{Data: resp.Content, Usage: resp.Usage, Model: resp.Model})
			rt.events.Append(models.EventAgentMessage, models.EventData{Content: resp.Content}, models.SourceAgent)
			rt.runBeforeOutbound(ctx, resp.Content)
			return models.TurnResult{Status: models.TurnOK, Data: resp.Content, Usage: resp.Usage, Model: resp.Model}
		}

		messages = rt.runToolBatch(ctx, resp)
	}

	return models.TurnResult{Status: models.TurnFailed, Data: "max iterations reached"}
}

// runToolBatch implements §4.6 step h: push the assistant message and
// its tool-call stubs, execute each call sequentially, push the tool
// results, consult self-repair, and return the refreshed history view.
func (rt *Runtime) runToolBatch(ctx context.Context, resp *models.ProviderResponse) []models.Message {
	rt.events.Append(models.EventAgentMessage, models.EventData{Content: resp.Content}, models.SourceAgent)

	stubs := make([]models.ToolCallStub, 0, len(resp.ToolCalls))
	for _, tc := range resp.ToolCalls {
		if len(stubs) >= MaxToolCallsPerIteration {
			break
		}
		stub := models.ToolCallStub{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
		stubs = append(stubs, stub)
		rt.events.Append(models.EventToolCall, models.EventData{
			CallID: stub.ID, ToolName: stub.Name, Arguments: stub.Arguments,
		}, models.SourceAgent)
	}

	stats := ToolBatchStats{ContextLimit: rt.cfg.ContextLimit}
	for _, stub := range stubs {
		result := rt.routeToolCall(ctx, stub)
		stats.CallCount++
		if result.Success {
			stats.ConsecutiveErrs = 0
		} else {
			stats.ErrorCount++
			stats.ConsecutiveErrs++
		}
		rt.events.Append(models.EventToolResult, models.EventData{
			CallID: stub.ID, Success: result.Success, Output: result.Output, Error: result.Error,
		}, models.SourceSystem)
	}

	history := rt.history()
	stats.EstimatedTokens = estimateTokens(history)

	if rt.selfRepair != nil && rt.selfRepair.Consult(stats) == SelfRepairCompact {
		return rt.forceCompact(ctx, history)
	}
	return history
}

// cacheStore populates the response cache with a completed turn's
// result, keyed on the request that produced it; a no-op when no cache
// is configured or the turn did not succeed.
func (rt *Runtime) cacheStore(req CompletionRequest, result models.TurnResult) {
	if rt.cache == nil || result.Status == models.TurnFailed {
		return
	}
	key := rt.cache.CacheKey(req.Messages, req.Model)
	rt.cache.Set(key, &models.ProviderResponse{Content: result.Data, Usage: result.Usage, Model: result.Model}, req.Model)
}

// runBeforeOutbound runs the beforeOutbound hook point over the final
// assistant content. Its result is advisory only: spec.md §4.6 names no
// mechanism for an outbound block to alter an already-returned result,
// so a block here is only observable to a host inspecting hook activity
// via its own instrumentation, not to the turn's return value.
func (rt *Runtime) runBeforeOutbound(ctx context.Context, content string) {
	rt.hooks.Run(ctx, models.HookBeforeOutbound, map[string]any{"content": content})
}

// lastUserIndex returns the index of the most recent role-"user"
// message, or -1 if there is none.
func lastUserIndex(messages []models.Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			return i
		}
	}
	return -1
}

// allToolSpecs merges the local registry's specs with the remote-tool
// manager's, if one is configured.
func (rt *Runtime) allToolSpecs() []models.ToolSpec {
	var specs []models.ToolSpec
	if rt.tools != nil {
		specs = append(specs, rt.tools.AllSpecs()...)
	}
	if rt.remote != nil {
		specs = append(specs, rt.remote.AllToolSpecs()...)
	}
	return specs
}

// RunStream drives one turn via the provider's streaming interface
// (spec.md §4.6.2). It relays every chunk to the returned channel and
// performs the same tool-call/compaction/fallback state machine as Run
// between provider calls; the channel is closed once the turn reaches a
// terminal state.
func (rt *Runtime) RunStream(ctx context.Context) (<-chan models.StreamChunk, error) {
	out := make(chan models.StreamChunk, 16)
	go rt.runStreamLoop(ctx, out)
	return out, nil
}

func (rt *Runtime) runStreamLoop(ctx context.Context, out chan<- models.StreamChunk) {
	defer close(out)

	if blocked, reason := rt.autonomy.CheckLimits(); blocked {
		rt.events.Append(models.EventAutonomyBlocked, models.EventData{
			AutonomyLevel: string(rt.autonomy.State().Level),
		}, models.SourceSystem)
		out <- models.StreamChunk{Type: models.ChunkError, Error: reason}
		return
	}

	messages := rt.history()
	if idx := lastUserIndex(messages); idx >= 0 {
		outcome := rt.hooks.Run(ctx, models.HookBeforeInbound, map[string]any{"message": messages[idx].Content})
		if outcome.Blocked {
			out <- models.StreamChunk{Type: models.ChunkError, Error: outcome.Reason}
			return
		}
		if patched, ok := outcome.Ctx.Data["message"].(string); ok {
			messages[idx].Content = patched
		}
	}

	specs := rt.allToolSpecs()
	fallbackRan := false

	for iter := 0; iter < rt.cfg.MaxToolIterations; iter++ {
		messages = rt.compactIfNeeded(ctx, messages)

		req := rt.buildCompletionRequest(messages, nil)
		if rt.provider.SupportsNativeTools() {
			req.Tools = specs
		} else if !fallbackRan && len(specs) > 0 {
			req.System = strings.TrimSpace(req.System + "\n\n" + toolPromptForCapabilities(specs))
		}

		if rt.cache != nil {
			key := rt.cache.CacheKey(req.Messages, req.Model)
			if cached, ok := rt.cache.Get(key); ok {
				rt.events.Append(models.EventCacheHit, models.EventData{CacheKey: key}, models.SourceSystem)
				rt.events.Append(models.EventAgentMessage, models.EventData{Content: cached.Content}, models.SourceAgent)
				rt.runBeforeOutbound(ctx, cached.Content)
				out <- models.StreamChunk{Type: models.ChunkText, Text: cached.Content}
				out <- models.StreamChunk{Type: models.ChunkDone, Response: cached}
				return
			}
		}

		chunks, err := rt.provider.Stream(ctx, req)
		if err != nil {
			rt.events.Append(models.EventError, models.EventData{Reason: err.Error()}, models.SourceSystem)
			out <- models.StreamChunk{Type: models.ChunkError, Error: err.Error()}
			return
		}

		resp, streamErr := rt.relayStream(ctx, chunks, out)
		if resp == nil {
			// No text accumulated before interruption: an error chunk
			// was already relayed by relayStream.
			_ = streamErr
			return
		}
		if resp.Usage != nil {
			rt.autonomy.RecordCost(resp.Model, *resp.Usage)
		}

		if len(resp.ToolCalls) == 0 && !rt.provider.SupportsNativeTools() && !fallbackRan {
			if result, ok := rt.runCodeExecutionFallback(ctx, resp); ok {
				fallbackRan = true
				rt.cacheStore(req, result)
				out <- models.StreamChunk{Type: models.ChunkDone, Response: &models.ProviderResponse{Content: result.Data, Usage: result.Usage, Model: result.Model}}
				return
			}
		}

		if len(resp.ToolCalls) == 0 {
			rt.cacheStore(req, models.TurnResult{Data: resp.Content, Usage: resp.Usage, Model: resp.Model})
			rt.events.Append(models.EventAgentMessage, models.EventData{Content: resp.Content}, models.SourceAgent)
			rt.runBeforeOutbound(ctx, resp.Content)
			out <- models.StreamChunk{Type: models.ChunkDone, Response: resp}
			return
		}

		for _, tc := range resp.ToolCalls {
			out <- models.StreamChunk{Type: models.ChunkToolStart, ToolCallID: tc.ID, ToolName: tc.Name}
		}
		messages = rt.runToolBatch(ctx, resp)
		for _, tc := range resp.ToolCalls {
			rec, _ := rt.lookupToolRecord(tc.ID)
			out <- models.StreamChunk{Type: models.ChunkToolResult, ToolCallID: tc.ID, Result: rec}
		}
	}

	out <- models.StreamChunk{Type: models.ChunkError, Error: "max iterations reached"}
}

// relayStream drains a provider's chunk channel to out, accumulating
// text and tool-call deltas into a full response. On interruption
// (channel closed without a "done" chunk) it synthesizes a response
// from whatever text accumulated, per spec.md §4.6.2; if no text
// accumulated either, it relays an error chunk and returns a nil
// response so the caller stops.
func (rt *Runtime) relayStream(ctx context.Context, chunks <-chan models.StreamChunk, out chan<- models.StreamChunk) (*models.ProviderResponse, error) {
	var text strings.Builder
	pending := map[string]*models.ToolCall{}
	var order []string

	for chunk := range chunks {
		switch chunk.Type {
		case models.ChunkText:
			text.WriteString(chunk.Text)
			out <- chunk
		case models.ChunkToolStart:
			pending[chunk.ToolCallID] = &models.ToolCall{ID: chunk.ToolCallID, Name: chunk.ToolName}
			order = append(order, chunk.ToolCallID)
			out <- chunk
		case models.ChunkToolDelta:
			if tc, ok := pending[chunk.ToolCallID]; ok {
				tc.Arguments += chunk.ToolArgDelta
			}
			out <- chunk
		case models.ChunkDone:
			if chunk.Response != nil {
				return chunk.Response, nil
			}
			return rt.synthesizeStreamResponse(text.String(), pending, order), nil
		case models.ChunkError:
			out <- chunk
			if text.Len() == 0 {
				rt.events.Append(models.EventStreamError, models.EventData{Reason: chunk.Error}, models.SourceSystem)
				return nil, errStreamInterrupted
			}
			return rt.synthesizeStreamResponse(text.String(), pending, order), nil
		default:
			out <- chunk
		}
	}

	// Channel closed without a terminal chunk.
	if text.Len() == 0 {
		rt.events.Append(models.EventStreamError, models.EventData{Reason: errStreamInterrupted.Error()}, models.SourceSystem)
		out <- models.StreamChunk{Type: models.ChunkError, Error: errStreamInterrupted.Error()}
		return nil, errStreamInterrupted
	}
	return rt.synthesizeStreamResponse(text.String(), pending, order), nil
}

func (rt *Runtime) synthesizeStreamResponse(text string, pending map[string]*models.ToolCall, order []string) *models.ProviderResponse {
	calls := make([]models.ToolCall, 0, len(order))
	for _, id := range order {
		if tc := pending[id]; tc != nil {
			calls = append(calls, *tc)
		}
	}
	return &models.ProviderResponse{Content: text, ToolCalls: calls, Model: rt.model}
}

// lookupToolRecord finds the tool_result event for callID and adapts
// it to a models.ToolResult for relaying in a tool_result chunk. Unlike
// a derived tool-role message, the event carries the actual Success
// flag, so a failed tool call is relayed as a failure rather than
// always synthesized as success.
func (rt *Runtime) lookupToolRecord(callID string) (*models.ToolResult, bool) {
	events := rt.events.Events()
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if (e.Type == models.EventToolResult || e.Type == models.EventToolResultTruncated) && e.Data.CallID == callID {
			return &models.ToolResult{Success: e.Data.Success, Output: e.Data.Output, Error: e.Data.Error}, true
		}
	}
	return nil, false
}
