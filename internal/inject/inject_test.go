package inject

import (
	"context"
	"testing"

	"github.com/dmorgan81/imagegen/internal/config"
	"github.com/dmorgan81/imagegen/internal/handler"
	"github.com/dmorgan81/imagegen/internal/server"
	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupResolvesCommands(t *testing.T) {
	injector := Setup(context.Background(), &config.Settings{BaseURL: "https://provider.example.test/v1"})
	t.Cleanup(func() { _ = injector.Shutdown() })

	s, err := do.Invoke[*server.Server](injector)
	require.NoError(t, err)
	assert.NotNil(t, s)

	h, err := do.Invoke[*handler.Handler](injector)
	require.NoError(t, err)
	assert.NotNil(t, h)
}
