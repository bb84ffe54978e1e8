package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/wayfinderhq/wayfinder/internal/core"
	"github.com/wayfinderhq/wayfinder/internal/domain/model"
	"github.com/wayfinderhq/wayfinder/internal/mocks"
)

func newLocalToolsFixture(t *testing.T, opts LocalToolsOptions) ([]core.Tool, *mocks.MockItineraryRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockItineraryRepository(ctrl)

	opts.Itineraries = MustNewItineraryService(ItineraryServiceOptions{Repo: repo})
	if opts.OwnerID == "" {
		opts.OwnerID = "u-1"
	}
	if opts.RequestID == "" {
		opts.RequestID = "r-1"
	}
	return LocalTools(opts), repo
}

func toolByName(t *testing.T, tools []core.Tool, name string) core.Tool {
	t.Helper()
	for _, tool := range tools {
		if tool.Descriptor.Name == name {
			return tool
		}
	}
	t.Fatalf("tool %q not in local set", name)
	return core.Tool{}
}

func TestLocalTools_Baseline(t *testing.T) {
	tools, _ := newLocalToolsFixture(t, LocalToolsOptions{})

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		require.True(t, tool.Valid())
		assert.Equal(t, core.ToolVariantBuiltin, tool.Descriptor.Variant)
		names = append(names, tool.Descriptor.Name)
	}
	assert.Equal(t, []string{"http_request", "save_itinerary", "get_itineraries"}, names)
}

func TestSaveItineraryTool(t *testing.T) {
	tools, repo := newLocalToolsFixture(t, LocalToolsOptions{})
	tool := toolByName(t, tools, "save_itinerary")

	doc := map[string]any{
		"destination": "Lisbon",
		"startDate":   "2026-04-01",
		"endDate":     "2026-04-05",
		"items":       []any{},
	}

	t.Run("saves with bound identity", func(t *testing.T) {
		repo.EXPECT().
			CreateIfAbsent(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, it *model.Itinerary) (bool, error) {
				// The model never supplies identity; the tool binds it.
				assert.Equal(t, "u-1", it.OwnerID)
				return true, nil
			})

		result, err := tool.Invoke(context.Background(), core.ToolCall{
			Arguments: map[string]any{"itinerary": doc},
		})
		require.NoError(t, err)
		want := model.StableItineraryID("u-1", "r-1", "Lisbon", "2026-04-01", "2026-04-05")
		assert.Equal(t, "saved:"+want, result)
	})

	t.Run("duplicate save reports existing id", func(t *testing.T) {
		repo.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).Return(false, nil)

		result, err := tool.Invoke(context.Background(), core.ToolCall{
			Arguments: map[string]any{"itinerary": doc},
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(result, "duplicate:"))
	})

	t.Run("rejects non-object argument", func(t *testing.T) {
		_, err := tool.Invoke(context.Background(), core.ToolCall{
			Arguments: map[string]any{"itinerary": "just text"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "itinerary must be a JSON object")
	})
}

func TestGetItinerariesTool(t *testing.T) {
	tools, repo := newLocalToolsFixture(t, LocalToolsOptions{})
	tool := toolByName(t, tools, "get_itineraries")

	t.Run("passes limit through", func(t *testing.T) {
		repo.EXPECT().
			ListRecent(gomock.Any(), "u-1", 5).
			Return([]*model.Itinerary{{OwnerID: "u-1", ItineraryID: "it-1", Destination: "Lisbon"}}, nil)

		// JSON-decoded arguments arrive as float64.
		result, err := tool.Invoke(context.Background(), core.ToolCall{
			Arguments: map[string]any{"limit": float64(5)},
		})
		require.NoError(t, err)
		assert.Contains(t, result, `"destination":"Lisbon"`)
	})

	t.Run("missing limit defers to store default", func(t *testing.T) {
		repo.EXPECT().ListRecent(gomock.Any(), "u-1", 0).Return([]*model.Itinerary{}, nil)

		result, err := tool.Invoke(context.Background(), core.ToolCall{Arguments: map[string]any{}})
		require.NoError(t, err)
		assert.Equal(t, "[]", result)
	})
}

func TestWebFetchTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/big":
			_, _ = w.Write([]byte(strings.Repeat("x", maxWebFetchBodyBytes+100)))
		default:
			_, _ = w.Write([]byte("hello wayfinder"))
		}
	}))
	defer srv.Close()

	newTool := func(t *testing.T, budget int) core.Tool {
		tools, _ := newLocalToolsFixture(t, LocalToolsOptions{
			HTTPClient:    srv.Client(),
			WebCallBudget: budget,
		})
		return toolByName(t, tools, "http_request")
	}
	fetch := func(t *testing.T, tool core.Tool, url string) (string, error) {
		t.Helper()
		return tool.Invoke(context.Background(), core.ToolCall{Arguments: map[string]any{"url": url}})
	}

	t.Run("returns status and body preview", func(t *testing.T) {
		result, err := fetch(t, newTool(t, 2), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "status 200\nhello wayfinder", result)
	})

	t.Run("marks truncated bodies", func(t *testing.T) {
		result, err := fetch(t, newTool(t, 2), srv.URL+"/big")
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(result, "\n[truncated]"))
		// status line + capped body + marker
		assert.Contains(t, result, strings.Repeat("x", 64))
	})

	t.Run("enforces per-run budget", func(t *testing.T) {
		tool := newTool(t, 1)

		_, err := fetch(t, tool, srv.URL)
		require.NoError(t, err)

		_, err = fetch(t, tool, srv.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "budget of 1 calls exhausted")
	})

	t.Run("rejected urls do not burn budget", func(t *testing.T) {
		tool := newTool(t, 1)

		_, err := fetch(t, tool, "ftp://example.com/file")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported url scheme")

		_, err = fetch(t, tool, "https://")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "url host is required")

		// The budget is still intact for a valid call.
		_, err = fetch(t, tool, srv.URL)
		require.NoError(t, err)
	})
}

func TestIntArgument(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want int
	}{
		{"float64", map[string]any{"limit": float64(3)}, 3},
		{"int", map[string]any{"limit": 7}, 7},
		{"json number", map[string]any{"limit": json.Number("5")}, 5},
		{"bad json number", map[string]any{"limit": json.Number("nope")}, 0},
		{"string ignored", map[string]any{"limit": "9"}, 0},
		{"absent", map[string]any{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, intArgument(tt.args, "limit"))
		})
	}
}

func TestReadBodyPreviewBounds(t *testing.T) {
	body, truncated, err := readBodyPreview(strings.NewReader("short"))
	require.NoError(t, err)
	assert.Equal(t, "short", body)
	assert.False(t, truncated)

	long := strings.Repeat("y", maxWebFetchBodyBytes+1)
	body, truncated, err = readBodyPreview(strings.NewReader(long))
	require.NoError(t, err)
	assert.Len(t, body, maxWebFetchBodyBytes)
	assert.True(t, truncated)

	body, truncated, err = readBodyPreview(nil)
	require.NoError(t, err)
	assert.Empty(t, body)
	assert.False(t, truncated)
}
