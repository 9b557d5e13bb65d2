// Package calculator is a small MCP server exposing integer sum, sub and
// factorial tools. It backs the demo-server command and the tool-service
// tests.
package calculator

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MaxFactorial is the largest n whose factorial fits in a uint64.
const MaxFactorial = 20

// NewServer returns an MCP server with the calculator tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer("calculator", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("sum",
		mcp.WithDescription("Adds two integers and returns their sum. Example: to calculate 3+5, call sum with a=3, b=5."),
		mcp.WithNumber("a", mcp.Required(), mcp.Description("First integer to add (left operand)")),
		mcp.WithNumber("b", mcp.Required(), mcp.Description("Second integer to add (right operand)")),
	), handleSum)

	s.AddTool(mcp.NewTool("sub",
		mcp.WithDescription("Subtracts the second integer from the first (a-b). Example: to calculate 8-1, call sub with a=8, b=1."),
		mcp.WithNumber("a", mcp.Required(), mcp.Description("The minuend")),
		mcp.WithNumber("b", mcp.Required(), mcp.Description("The subtrahend")),
	), handleSub)

	s.AddTool(mcp.NewTool("factorial",
		mcp.WithDescription(fmt.Sprintf("Calculates the factorial of an integer n (0-%d). Example: factorial with n=7 returns 5040.", MaxFactorial)),
		mcp.WithNumber("n", mcp.Required(), mcp.Description("Integer to calculate the factorial of")),
	), handleFactorial)

	return s
}

func handleSum(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, b, err := operands(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(strconv.FormatInt(a+b, 10)), nil
}

func handleSub(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, b, err := operands(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(strconv.FormatInt(a-b, 10)), nil
}

func handleFactorial(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := integerArg(req.GetArguments(), "n")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if n < 0 || n > MaxFactorial {
		return mcp.NewToolResultError(fmt.Sprintf("n must be between 0 and %d, got %d", MaxFactorial, n)), nil
	}
	return mcp.NewToolResultText(strconv.FormatUint(Factorial(int(n)), 10)), nil
}

// Factorial returns n! for 0 <= n <= MaxFactorial.
func Factorial(n int) uint64 {
	out := uint64(1)
	for i := 2; i <= n; i++ {
		out *= uint64(i)
	}
	return out
}

func operands(req mcp.CallToolRequest) (int64, int64, error) {
	args := req.GetArguments()
	a, err := integerArg(args, "a")
	if err != nil {
		return 0, 0, err
	}
	b, err := integerArg(args, "b")
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// integerArg reads an integral JSON number. Floats with a fractional part
// and non-numeric values are rejected.
func integerArg(args map[string]any, key string) (int64, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("argument %q must be a number, got %T", key, v)
	}
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, fmt.Errorf("argument %q must be an integer, got %v", key, f)
	}
	return int64(f), nil
}
