package mcp

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/mcp-go/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tally/adapter/cli"
	"github.com/felixgeelhaar/tally/internal/app"
	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/pkg/config"
	"github.com/felixgeelhaar/tally/pkg/observability"
)

func TestServe_Validation(t *testing.T) {
	ctx := context.Background()
	assert.EqualError(t, Serve(ctx, nil, &cli.App{}, nil), "config is required")
	assert.EqualError(t, Serve(ctx, &config.Config{}, nil, nil), "CLI app is required")
}

func TestFieldsToArgs(t *testing.T) {
	args := fieldsToArgs([]middleware.Field{
		{Key: "tool", Value: "licence.status"},
		{Key: "duration_ms", Value: 3},
	})
	assert.Equal(t, []any{"tool", "licence.status", "duration_ms", 3}, args)
}

func TestNewCLIApp(t *testing.T) {
	container, err := app.NewContainer(context.Background(), &config.Config{
		AppEnv:      "test",
		Flavor:      "huawei",
		StoreDriver: "memory",
	}, observability.NopLogger())
	require.NoError(t, err)
	defer container.Close()

	cliApp := NewCLIApp(container)
	assert.Equal(t, domain.FlavorHuawei, cliApp.Flavor)
	assert.Same(t, container.Handler, cliApp.Handler)
	assert.Nil(t, cliApp.Session)
	assert.NotNil(t, cliApp.Diagnostics)
}
