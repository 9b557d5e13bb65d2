package main

// Compiled-in modules register themselves with the core registry.
import (
	_ "github.com/flemzord/mcpflow/internal/gateway"
	_ "github.com/flemzord/mcpflow/internal/schedule"
	_ "github.com/flemzord/mcpflow/internal/telemetry"
	_ "github.com/flemzord/mcpflow/modules/memory/sqlite"
	_ "github.com/flemzord/mcpflow/modules/provider/anthropic"
	_ "github.com/flemzord/mcpflow/modules/provider/openai"
	_ "github.com/flemzord/mcpflow/modules/toolservice/mcp"
)
