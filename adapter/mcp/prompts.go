package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterPrompts registers MCP prompts for common licence support workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("licence_support").
		Description("Investigate why a user does not see the features they paid for.").
		Argument("complaint", "What the user reports, in their words", false).
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			complaint := args["complaint"]
			if complaint == "" {
				complaint = "[no complaint given]"
			}

			return &mcp.PromptResult{
				Description: "Licence Support",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: fmt.Sprintf(`A user reports: %s

Please work out whether their licence is in the expected state:

1. Read tally://licence/status and note the tier, the status code and any add-ons
2. A status ending in _temporary means the purchase is less than 48 hours old
   and not yet confirmed by the store
3. Call licence.refresh to pull the current inventory from the store, then
   compare the tier before and after
4. Read tally://diagnostics for unexpected purchase states or unreadable records

Summarize what the user owns, what is unlocked, and any action they should take.`, complaint),
						},
					},
				},
			}, nil
		})

	srv.Prompt("upgrade_options").
		Description("Explain which packages the user can buy next and what they cost.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{
				Description: "Upgrade Options",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: `Help me understand my upgrade options:

1. Check my current tier with licence.status
2. List the packages and prices with licence.packages
3. Skip packages at or below my current tier
4. If I already have a subscription, explain the switch_to offering

Keep the answer short and list the prices as the store shows them.`,
						},
					},
				},
			}, nil
		})

	return nil
}
