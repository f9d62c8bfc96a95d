package models

// Role identifies who authored a derived conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCallStub is an assistant-requested tool invocation carried on a
// derived assistant message, before it has been paired with a result.
type ToolCallStub struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry of the conversation history derived from the
// event log by a left-to-right scan (see eventlog.DeriveSessionHistory).
type Message struct {
	Role Role `json:"role"`

	// Content is the message text. For a tool message this is the
	// tool's output (or error text).
	Content string `json:"content"`

	// ToolCalls is populated on assistant messages that requested tool
	// invocations; it is the union of every tool_call event emitted
	// between this message and the next user_message/agent_message.
	ToolCalls []ToolCallStub `json:"tool_calls,omitempty"`

	// ToolCallID and ToolName identify which call a tool-role message is
	// the result of.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
}

// ToolCallRecord pairs a tool_call event with its tool_result event (if
// any has arrived yet) for the tool-call view.
type ToolCallRecord struct {
	CallID    string `json:"call_id"`
	ToolName  string `json:"tool_name"`
	Arguments string `json:"arguments"`

	Pending bool   `json:"pending"`
	Success bool   `json:"success,omitempty"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GoalStatus is the lifecycle state of a Goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalFailed    GoalStatus = "failed"
)

// Goal is a tracked objective, constructed by folding goal_added and
// goal_updated events keyed by id.
type Goal struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      GoalStatus `json:"status"`
	CreatedAt   int64      `json:"created_at"`
	UpdatedAt   int64      `json:"updated_at"`
	SubGoals    []string   `json:"sub_goals,omitempty"`
	Artifacts   []string   `json:"artifacts,omitempty"`
}
