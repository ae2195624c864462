package flow

import (
	"fmt"

	"github.com/hupe1980/vaxmesh/core"
	internalutil "github.com/hupe1980/vaxmesh/internal/util"
	"github.com/hupe1980/vaxmesh/model"
)

// DefaultRequestProcessors returns the standard pipeline: instructions,
// conversation contents and tool signatures.
func DefaultRequestProcessors() []RequestProcessor {
	return []RequestProcessor{
		NewInstructionsProcessor(),
		NewContentsProcessor(0),
		NewToolsProcessor(),
	}
}

// InstructionsProcessor resolves the agent instruction against the session
// and renders template actions in it.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets req.Instructions.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, inv *Invocation) error {
	sess := runCtx.Session()

	instructions, err := inv.Definition.Instruction.Resolve(sess)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	req.Instructions, err = internalutil.RenderTemplate(instructions, SessionState(sess))
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	runCtx.LogDebug("agent.instruction.resolved", "length", len(req.Instructions))

	return nil
}

// ContentsProcessor copies the conversation history into the request.
type ContentsProcessor struct {
	maxMessages int
}

// NewContentsProcessor creates a contents processor. maxMessages > 0 keeps
// only the most recent messages, never starting on a tool result.
func NewContentsProcessor(maxMessages int) *ContentsProcessor {
	return &ContentsProcessor{maxMessages: maxMessages}
}

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest sets req.Messages.
func (p *ContentsProcessor) ProcessRequest(_ *core.RunContext, req *model.Request, inv *Invocation) error {
	msgs := inv.Conversation.Messages()

	if p.maxMessages > 0 && len(msgs) > p.maxMessages {
		msgs = msgs[len(msgs)-p.maxMessages:]
		for len(msgs) > 0 && msgs[0].Role == core.RoleTool {
			msgs = msgs[1:]
		}
	}

	req.Messages = msgs

	return nil
}

// ToolsProcessor offers the agent's direct and delegate tools to the model.
type ToolsProcessor struct{}

// NewToolsProcessor creates a new tools processor.
func NewToolsProcessor() *ToolsProcessor { return &ToolsProcessor{} }

// Name returns the processor's identifier.
func (p *ToolsProcessor) Name() string { return "tools" }

// ProcessRequest sets req.Tools.
func (p *ToolsProcessor) ProcessRequest(_ *core.RunContext, req *model.Request, inv *Invocation) error {
	if inv.Toolset != nil && inv.Toolset.Len() > 0 {
		req.Tools = inv.Toolset.Definitions()
	}

	return nil
}

// SessionState exposes session fields to instruction templates.
func SessionState(s core.UserSessionContext) map[string]any {
	return map[string]any{
		"date":                    s.Date,
		"vaccine":                 s.Vaccine,
		"clinic":                  s.Clinic,
		"data_type":               s.DataType,
		"vaccine_recommendations": s.VaccineRecommendations,
		"restart":                 s.Restart,
	}
}
