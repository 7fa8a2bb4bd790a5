package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/skillforge/skillbridge/internal/skills"
)

// Handler returns the tool handler for skill. The handler keeps its own copy
// of skill, so a call that starts just before a sync pass finishes runs
// against the previous pass's price and description.
func (c *Client) Handler(skill skills.Skill) server.ToolHandlerFunc {
	snapshot := skill.Clone()

	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input := req.GetString("input", "")

		result, err := c.Execute(ctx, snapshot, input)
		if err != nil {
			msg := c.Describe(err)
			c.logger.Warn("skill execution failed",
				zap.String("skill_id", snapshot.Key()),
				zap.String("skill", snapshot.Name),
				zap.Error(err))
			return mcp.NewToolResultError(msg), nil
		}

		pretty, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to format backend response: %v", err)), nil
		}

		c.logger.Info("skill executed",
			zap.String("skill_id", snapshot.Key()),
			zap.String("skill", snapshot.Name))
		return mcp.NewToolResultText(fmt.Sprintf("Skill %q (#%s) executed successfully.\n\n%s",
			snapshot.Name, snapshot.Key(), pretty)), nil
	}
}
