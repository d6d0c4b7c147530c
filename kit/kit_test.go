package kit

import (
	"context"
	"errors"
	"testing"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	chained := Chain(mw("a"), mw("b"))(base)
	resp, err := chained(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	expected := []string{"a_before", "b_before", "endpoint", "b_after", "a_after"}
	if len(order) != len(expected) {
		t.Fatalf("order length: got %d, want %d", len(order), len(expected))
	}
	for i, v := range expected {
		if order[i] != v {
			t.Fatalf("order[%d]: got %q, want %q", i, order[i], v)
		}
	}
}

func TestLogging_PropagatesError(t *testing.T) {
	errFail := errors.New("fail")
	base := func(_ context.Context, _ any) (any, error) {
		return nil, errFail
	}
	_, err := Logging(nil, "test")(base)(context.Background(), nil)
	if !errors.Is(err, errFail) {
		t.Fatalf("error: got %v, want %v", err, errFail)
	}
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	if GetTransport(ctx) != "http" {
		t.Errorf("default transport: got %q", GetTransport(ctx))
	}
	ctx = WithTransport(ctx, "mcp")
	ctx = WithTraceID(ctx, "abcd1234")
	ctx = WithPublic(ctx)
	if GetTransport(ctx) != "mcp" {
		t.Errorf("transport: got %q", GetTransport(ctx))
	}
	if GetTraceID(ctx) != "abcd1234" {
		t.Errorf("trace id: got %q", GetTraceID(ctx))
	}
	if !IsPublic(ctx) {
		t.Error("public flag not set")
	}
}

func TestCounting_ReportsTransport(t *testing.T) {
	// WHAT: Counting sees the transport set on the context and the endpoint error.
	// WHY: Metrics split MCP and HTTP traffic per endpoint.
	var gotName, gotTransport string
	var gotErr error
	errFail := errors.New("fail")
	base := func(_ context.Context, _ any) (any, error) { return nil, errFail }
	ep := Counting("judit_quota", func(name, transport string, err error) {
		gotName, gotTransport, gotErr = name, transport, err
	})(base)

	ep(WithTransport(context.Background(), "mcp"), nil)
	if gotName != "judit_quota" || gotTransport != "mcp" || !errors.Is(gotErr, errFail) {
		t.Errorf("observed %q %q %v", gotName, gotTransport, gotErr)
	}
}

func TestOperation_TagsContext(t *testing.T) {
	// WHAT: Operation makes the endpoint name visible to the wrapped endpoint.
	// WHY: The SQL tracer attributes statements to the operation that ran them.
	var got string
	base := func(ctx context.Context, _ any) (any, error) {
		got = GetOperation(ctx)
		return nil, nil
	}
	Chain(Operation("judit_quota"))(base)(context.Background(), nil)
	if got != "judit_quota" {
		t.Errorf("operation: got %q", got)
	}
	if GetOperation(context.Background()) != "" {
		t.Error("operation set on a bare context")
	}
}
