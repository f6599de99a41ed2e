package toolexec

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// JSON-RPC messages for the MCP tool server transport.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      interface{} `json:"id,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      interface{}     `json:"id"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPClient talks to an external tool server over Model Context Protocol
// JSON-RPC on the child process stdio.
type MCPClient struct {
	command string
	args    []string
	timeout time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	process *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Scanner
	id      int
	pending map[int]chan *rpcResponse
}

// NewMCPClient creates a client for the tool server started by command+args.
func NewMCPClient(command string, args []string, timeout time.Duration, logger zerolog.Logger) *MCPClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &MCPClient{
		command: command,
		args:    args,
		timeout: timeout,
		logger:  logger,
		pending: make(map[int]chan *rpcResponse),
	}
}

// Start launches the tool server process and performs the initialize
// handshake. Calling Start on a running client is a no-op.
func (c *MCPClient) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.process != nil {
		c.mu.Unlock()
		return nil
	}

	cmd := exec.Command(c.command, c.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.mu.Unlock()
		return err
	}

	if err := cmd.Start(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to start tool server: %w", err)
	}

	c.process = cmd
	c.stdin = stdin
	c.stdout = bufio.NewScanner(stdout)
	c.mu.Unlock()

	go c.listen()

	return c.initialize(ctx)
}

// Close terminates the tool server process.
func (c *MCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.process == nil {
		return nil
	}
	_ = c.stdin.Close()
	err := c.process.Process.Kill()
	c.process = nil
	return err
}

func (c *MCPClient) listen() {
	for c.stdout.Scan() {
		var resp rpcResponse
		if err := json.Unmarshal(c.stdout.Bytes(), &resp); err != nil {
			c.logger.Error().Err(err).Msg("Failed to unmarshal tool server response")
			continue
		}

		if id, ok := resp.ID.(float64); ok {
			c.mu.Lock()
			ch, exists := c.pending[int(id)]
			if exists {
				delete(c.pending, int(id))
				ch <- &resp
			}
			c.mu.Unlock()
		}
	}
}

func (c *MCPClient) initialize(ctx context.Context) error {
	params := map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]interface{}{
			"name":    "mofflow",
			"version": "0.1.0",
		},
	}
	_, err := c.call(ctx, "initialize", params)
	return err
}

func (c *MCPClient) call(ctx context.Context, method string, params interface{}) (*rpcResponse, error) {
	c.mu.Lock()
	c.id++
	id := c.id
	ch := make(chan *rpcResponse, 1)
	c.pending[id] = ch
	stdin := c.stdin
	c.mu.Unlock()

	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	if _, err := io.WriteString(stdin, string(data)+"\n"); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("tool server error (%d): %s", resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.timeout):
		return nil, fmt.Errorf("tool server request timeout")
	}
}

// CallTool executes a remote tool and returns the raw result object.
func (c *MCPClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("tool server unavailable: %w", err)
	}

	resp, err := c.call(ctx, "tools/call", map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("malformed tool server response: %w", err)
	}
	return result, nil
}

// Handler adapts a remote tool into a registry Handler. MCP results carry
// text content blocks whose body may itself be fenced JSON; the text is
// returned as-is and left to the executor's layered payload parser.
func (c *MCPClient) Handler(remoteName string) Handler {
	return func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		result, err := c.CallTool(ctx, remoteName, args)
		if err != nil {
			return nil, err
		}
		if text, ok := contentText(result); ok {
			return text, nil
		}
		return result, nil
	}
}

// contentText pulls the first text block out of a tools/call result.
func contentText(result map[string]interface{}) (string, bool) {
	content, ok := result["content"].([]interface{})
	if !ok {
		return "", false
	}
	for _, block := range content {
		m, ok := block.(map[string]interface{})
		if !ok {
			continue
		}
		if m["type"] == "text" {
			if text, ok := m["text"].(string); ok {
				return text, true
			}
		}
	}
	return "", false
}
