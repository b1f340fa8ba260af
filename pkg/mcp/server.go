// Package mcp exposes read-only views of the query cache, approvals, metrics
// and table catalog as MCP tools over stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/datagata/gata/pkg/models"
)

// CacheReader is the part of the query cache the tools read.
type CacheReader interface {
	FindSimilar(ctx context.Context, prompt string, mode models.QueryMode, threshold float64) (*models.CacheMatch, error)
	Stats(ctx context.Context) (models.CacheStats, error)
}

// ApprovalLister lists a user's approvals on a table.
type ApprovalLister interface {
	List(ctx context.Context, userID, tableName string) ([]models.ApprovedQuery, error)
}

// MetricsSummarizer summarizes provider outcomes over a window.
type MetricsSummarizer interface {
	Summarize(ctx context.Context, window time.Duration) (models.MetricsSummary, error)
}

// TableLister lists registered tables.
type TableLister interface {
	List(ctx context.Context) ([]models.TableMetadata, error)
}

// Options are the sources behind the tools. Any of them may be nil, in
// which case the matching tool reports that it is not configured.
type Options struct {
	Cache     CacheReader
	Approvals ApprovalLister
	Metrics   MetricsSummarizer
	Tables    TableLister
	Version   string
	Logger    *zap.Logger
}

// Server is a minimal MCP server speaking line-delimited JSON-RPC 2.0.
type Server struct {
	opts Options
	log  *zap.Logger
}

// New creates a Server.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{opts: opts, log: log}
}

// Run reads requests from r one per line and writes responses to w. It
// returns when r is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(w, failure(nil, CodeParseError, "parse error"))
			continue
		}
		if resp := s.dispatch(ctx, &req); resp != nil {
			s.write(w, resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return result(req.ID, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      ServerInfo{Name: "gata", Version: s.opts.Version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "notifications/initialized":
		return nil
	case "ping":
		return result(req.ID, map[string]any{})
	case "tools/list":
		return result(req.ID, ToolsListResult{Tools: toolDefinitions()})
	case "tools/call":
		return s.callTool(ctx, req)
	default:
		if req.ID == nil {
			return nil
		}
		return failure(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func (s *Server) callTool(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return failure(req.ID, CodeInvalidParams, "invalid params")
	}

	t, ok := toolByName(params.Name)
	if !ok {
		return result(req.ID, errorResult("unknown tool: "+params.Name))
	}
	args := params.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	s.log.Debug("mcp tool call", zap.String("tool", params.Name))
	return result(req.ID, t.handle(ctx, s, args))
}

func (s *Server) write(w io.Writer, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("mcp marshal response", zap.Error(err))
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.log.Error("mcp write response", zap.Error(err))
	}
}
