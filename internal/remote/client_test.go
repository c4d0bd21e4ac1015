package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bookyo/client/internal/errors"
)

func gqlServer(t *testing.T, handler func(w http.ResponseWriter, req gqlRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExecuteDecodesData(t *testing.T) {
	srv := gqlServer(t, func(w http.ResponseWriter, req gqlRequest) {
		w.Write([]byte(`{"data":{"value":42}}`))
	})

	c := NewClient(srv.URL, "key")
	var out struct {
		Value int `json:"value"`
	}
	if err := c.Execute(context.Background(), "query { value }", nil, &out); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.Value != 42 {
		t.Errorf("decoded value = %d, want 42", out.Value)
	}
}

func TestExecuteSendsAuthHeaders(t *testing.T) {
	var gotKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "api-key-1",
		WithTokenSource(func() string { return "session-token" }))
	if err := c.Execute(context.Background(), "query { x }", nil, nil); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if gotKey != "api-key-1" {
		t.Errorf("x-api-key = %q, want %q", gotKey, "api-key-1")
	}
	if gotAuth != "session-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "session-token")
	}
}

func TestExecuteErrorBearingResponseIsRemoteError(t *testing.T) {
	srv := gqlServer(t, func(w http.ResponseWriter, req gqlRequest) {
		// Errors alongside partial data must still fail the operation.
		w.Write([]byte(`{"data":{"value":1},"errors":[{"message":"access denied"}]}`))
	})

	c := NewClient(srv.URL, "key")
	var out struct {
		Value int `json:"value"`
	}
	err := c.Execute(context.Background(), "query { value }", nil, &out)
	if err == nil {
		t.Fatal("Execute() with an error-bearing response succeeded")
	}
	if errors.Code(err) != errors.ErrRemote {
		t.Errorf("error code = %q, want %q", errors.Code(err), errors.ErrRemote)
	}
	if out.Value != 0 {
		t.Error("partial data was decoded despite the errors")
	}
}

func TestExecuteNon200IsRemoteError(t *testing.T) {
	srv := gqlServer(t, func(w http.ResponseWriter, req gqlRequest) {
		http.Error(w, "internal server error", http.StatusInternalServerError)
	})

	c := NewClient(srv.URL, "key")
	err := c.Execute(context.Background(), "query { x }", nil, nil)
	if errors.Code(err) != errors.ErrRemote {
		t.Errorf("error code = %q, want %q", errors.Code(err), errors.ErrRemote)
	}
}

func TestExecuteConnectionRefusedIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close() // nothing listens here anymore

	c := NewClient(endpoint, "key")
	err := c.Execute(context.Background(), "query { x }", nil, nil)
	if err == nil {
		t.Fatal("Execute() against a closed endpoint succeeded")
	}
	if !errors.IsNetwork(err) {
		t.Errorf("error = %v classified as %q, want %q", err, errors.Code(err), errors.ErrNetwork)
	}
}

func TestGetBookNotFound(t *testing.T) {
	srv := gqlServer(t, func(w http.ResponseWriter, req gqlRequest) {
		w.Write([]byte(`{"data":{"getBook":null}}`))
	})

	c := NewClient(srv.URL, "key")
	_, err := c.GetBook(context.Background(), "missing-id")
	if errors.Code(err) != errors.ErrNotFound {
		t.Errorf("error code = %q, want %q", errors.Code(err), errors.ErrNotFound)
	}
}

func TestGetBookResolvesAuthorID(t *testing.T) {
	srv := gqlServer(t, func(w http.ResponseWriter, req gqlRequest) {
		w.Write([]byte(`{"data":{"getBook":{"id":"b1","title":"T","author":{"id":"a1","name":"N"}}}}`))
	})

	c := NewClient(srv.URL, "key")
	book, err := c.GetBook(context.Background(), "b1")
	if err != nil {
		t.Fatalf("GetBook() error = %v", err)
	}
	if book.AuthorID != "a1" {
		t.Errorf("AuthorID = %q, want %q", book.AuthorID, "a1")
	}
}

func TestListAuthorsByNameSendsFilter(t *testing.T) {
	var gotVars map[string]interface{}
	srv := gqlServer(t, func(w http.ResponseWriter, req gqlRequest) {
		gotVars = req.Variables
		w.Write([]byte(`{"data":{"listAuthors":{"items":[{"id":"a1","name":"Ann"}],"nextToken":""}}}`))
	})

	c := NewClient(srv.URL, "key")
	authors, err := c.ListAuthorsByName(context.Background(), "Ann")
	if err != nil {
		t.Fatalf("ListAuthorsByName() error = %v", err)
	}
	if len(authors) != 1 || authors[0].Name != "Ann" {
		t.Errorf("authors = %v, want [Ann]", authors)
	}

	filter, ok := gotVars["filter"].(map[string]interface{})
	if !ok {
		t.Fatalf("filter variable = %v, want a predicate object", gotVars["filter"])
	}
	name, _ := filter["name"].(map[string]interface{})
	if name["eq"] != "Ann" {
		t.Errorf("filter = %v, want name.eq = Ann", filter)
	}
}

func TestDeriveRealtimeEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"https://api.example.com/graphql", "wss://api.example.com/graphql"},
		{"http://localhost:4000/graphql", "ws://localhost:4000/graphql"},
		{"wss://already.example.com", "wss://already.example.com"},
	}
	for _, tt := range tests {
		if got := deriveRealtimeEndpoint(tt.endpoint); got != tt.want {
			t.Errorf("deriveRealtimeEndpoint(%q) = %q, want %q", tt.endpoint, got, tt.want)
		}
	}
}
