package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region types

// GenerateResult holds the response from a Generate call.
type GenerateResult struct {
	Text string
	Meta map[string]string
}

// VerifyResult holds the structured verifier (S2) response.
type VerifyResult struct {
	Score    float64
	Issues   []string
	NeedsFix bool
}

// SearchResult holds a single web search hit.
type SearchResult struct {
	Title   string
	Snippet string
	URL     string
}

// #endregion types

// #region invoker

// Invoker abstracts the gRPC call so tests can inject a fake service.
// *grpc.ClientConn satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// #endregion invoker

// #region client-struct

// Client wraps the connection to the external inference service. The
// service speaks a small struct-typed protocol, so calls go through the
// generic invoke path with structpb payloads rather than generated
// stubs.
type Client struct {
	conn    *grpc.ClientConn
	invoker Invoker
}

// NewClient connects to the inference gRPC server.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, invoker: conn}, nil
}

// NewClientWithInvoker creates a Client over an injected invoker.
// Used for testing without a real gRPC connection.
func NewClientWithInvoker(inv Invoker) *Client {
	return &Client{invoker: inv}
}

// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion client-struct

// #region generate

// Generate requests a draft answer for the question and evidence pack.
func (c *Client) Generate(ctx context.Context, question string, evidence []string, instructions string) (GenerateResult, error) {
	reply, err := c.call(ctx, "/credence.Inference/Generate", map[string]any{
		"question":     question,
		"evidence":     toAnySlice(evidence),
		"instructions": instructions,
	})
	if err != nil {
		return GenerateResult{}, fmt.Errorf("generate rpc: %w", err)
	}

	meta := make(map[string]string)
	if mv := reply.Fields["meta"].GetStructValue(); mv != nil {
		for k, v := range mv.Fields {
			meta[k] = v.GetStringValue()
		}
	}
	return GenerateResult{
		Text: reply.Fields["text"].GetStringValue(),
		Meta: meta,
	}, nil
}

// #endregion generate

// #region paraphrase

// Paraphrase requests k paraphrase-style variants of the draft,
// conditioned on the question and evidence.
func (c *Client) Paraphrase(ctx context.Context, question, draft string, evidence []string, k int) ([]string, error) {
	reply, err := c.call(ctx, "/credence.Inference/Paraphrase", map[string]any{
		"question": question,
		"draft":    draft,
		"evidence": toAnySlice(evidence),
		"k":        float64(k),
	})
	if err != nil {
		return nil, fmt.Errorf("paraphrase rpc: %w", err)
	}
	return stringList(reply, "variants"), nil
}

// Variants adapts Paraphrase to the uncertainty.VariantSource contract.
func (c *Client) Variants(ctx context.Context, question, draft string, evidence []string, k int) ([]string, error) {
	return c.Paraphrase(ctx, question, draft, evidence, k)
}

// #endregion paraphrase

// #region embed

// Embed maps text to an embedding vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	reply, err := c.call(ctx, "/credence.Inference/Embed", map[string]any{
		"text": text,
	})
	if err != nil {
		return nil, fmt.Errorf("embed rpc: %w", err)
	}
	lv := reply.Fields["embedding"].GetListValue()
	if lv == nil {
		return nil, fmt.Errorf("embed rpc: missing embedding field")
	}
	out := make([]float64, len(lv.Values))
	for i, v := range lv.Values {
		out[i] = v.GetNumberValue()
	}
	return out, nil
}

// #endregion embed

// #region verify

// Verify runs the structured answer verifier (S2).
func (c *Client) Verify(ctx context.Context, question, answer string) (VerifyResult, error) {
	reply, err := c.call(ctx, "/credence.Inference/Verify", map[string]any{
		"question": question,
		"answer":   answer,
	})
	if err != nil {
		return VerifyResult{}, fmt.Errorf("verify rpc: %w", err)
	}
	return VerifyResult{
		Score:    reply.Fields["score"].GetNumberValue(),
		Issues:   stringList(reply, "issues"),
		NeedsFix: reply.Fields["needs_fix"].GetBoolValue(),
	}, nil
}

// #endregion verify

// #region web-search

// WebSearch queries the web via the inference service.
func (c *Client) WebSearch(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	reply, err := c.call(ctx, "/credence.Inference/WebSearch", map[string]any{
		"query":       query,
		"max_results": float64(maxResults),
	})
	if err != nil {
		return nil, fmt.Errorf("web search rpc: %w", err)
	}

	lv := reply.Fields["results"].GetListValue()
	if lv == nil {
		return nil, nil
	}
	results := make([]SearchResult, 0, len(lv.Values))
	for _, v := range lv.Values {
		sv := v.GetStructValue()
		if sv == nil {
			continue
		}
		results = append(results, SearchResult{
			Title:   sv.Fields["title"].GetStringValue(),
			Snippet: sv.Fields["snippet"].GetStringValue(),
			URL:     sv.Fields["url"].GetStringValue(),
		})
	}
	return results, nil
}

// #endregion web-search

// #region fetch

// Fetch retrieves a document body by URL via the inference service.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	reply, err := c.call(ctx, "/credence.Inference/Fetch", map[string]any{
		"url": url,
	})
	if err != nil {
		return "", fmt.Errorf("fetch rpc: %w", err)
	}
	return reply.Fields["body"].GetStringValue(), nil
}

// #endregion fetch

// #region helpers

func (c *Client) call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	reply := &structpb.Struct{}
	if err := c.invoker.Invoke(ctx, method, req, reply); err != nil {
		return nil, err
	}
	if reply.Fields == nil {
		reply.Fields = map[string]*structpb.Value{}
	}
	return reply, nil
}

func stringList(s *structpb.Struct, key string) []string {
	lv := s.Fields[key].GetListValue()
	if lv == nil {
		return nil
	}
	out := make([]string, 0, len(lv.Values))
	for _, v := range lv.Values {
		out = append(out, v.GetStringValue())
	}
	return out
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// #endregion helpers
