package agent

import "github.com/kernelworks/kernelbot/internal/tools"

const mathInstructions = "You can solve math problems with the following tools: Add, Subtract, Multiply, Divide. " +
	"Please use a tool to solve math problems before you solve the math problem by yourself." +
	"Do not generate markdown with data:image/... URIs. Do not include image placeholders." +
	"If a chart or image is to be shown, describe it in text or reference a hosted URL only."

// NewMathAgentConfig builds the configuration for the math assistant: the
// arithmetic, chart, media, and research tools behind a math-focused prompt.
func NewMathAgentConfig(library tools.MediaLibrary, researcher tools.Researcher, maxToolRounds int) Config {
	return Config{
		AgentID:      "math_agent",
		AgentName:    "Math Agent",
		Description:  "An agent that can help you with math problems",
		Instructions: mathInstructions,
		Toolset: tools.NewToolset(
			tools.NewAddTool(),
			tools.NewSubtractTool(),
			tools.NewMultiplyTool(),
			tools.NewDivideTool(),
			tools.NewResearchTool(researcher),
			tools.NewGetImageTool(library),
			tools.NewGetVideoTool(library),
			tools.NewVerticalBarChartTool(),
			tools.NewLineChartTool(),
			tools.NewPieChartTool(),
		),
		MaxToolRounds: maxToolRounds,
	}
}
