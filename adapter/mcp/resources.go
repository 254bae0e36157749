package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterResources registers MCP resources that expose licence data.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	app := deps.App

	srv.Resource("tally://licence/status").
		Name("Licence Status").
		Description("The stored licence record and add-on features").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			status, err := licenceStatus(ctx, app)
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, status)
		})

	srv.Resource("tally://licence/packages").
		Name("Packages").
		Description("Packages sold in the configured store with cached prices").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			pkgs, err := listPackages(ctx, app)
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, pkgs)
		})

	srv.Resource("tally://diagnostics").
		Name("Diagnostics").
		Description("Recent unexpected conditions seen while reconciling").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.Diagnostics == nil {
				return nil, fmt.Errorf("diagnostics require initialization")
			}
			return jsonResource(uri, app.Diagnostics.Recent())
		})

	return nil
}

func jsonResource(uri string, v any) (*mcp.ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
