package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/energy-services/internal/api/mcp"
	"github.com/scrypster/energy-services/internal/chat"
	"github.com/scrypster/energy-services/internal/datasets"
	"github.com/scrypster/energy-services/internal/llm"
)

func fixtureProvider() datasets.Provider {
	return datasets.NewLoader(datasets.NewDirSource("../../datasets/testdata"), nil)
}

type failingProvider struct{}

func (failingProvider) Bundle(context.Context) (*datasets.Bundle, error) {
	return nil, fmt.Errorf("historical: %w: dial tcp: refused", datasets.ErrDataUnavailable)
}

type cannedChatter struct{ reply chat.Reply }

func (c cannedChatter) Send(context.Context, []llm.Message, string) chat.Reply { return c.reply }

// call sends one JSON-RPC request and decodes the response envelope.
func call(t *testing.T, srv *mcp.Server, req string) map[string]interface{} {
	t.Helper()
	resp, err := srv.HandleRequest(context.Background(), []byte(req))
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(resp, &out))
	return out
}

// toolText calls a tool through tools/call and returns its text block and
// error flag.
func toolText(t *testing.T, srv *mcp.Server, name string, args string) (string, bool) {
	t.Helper()
	out := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"`+name+`","arguments":`+args+`}}`)
	require.Nil(t, out["error"])
	result := out["result"].(map[string]interface{})
	content := result["content"].([]interface{})
	require.Len(t, content, 1)
	isError, _ := result["isError"].(bool)
	return content[0].(map[string]interface{})["text"].(string), isError
}

func TestInitializeAndToolsList(t *testing.T) {
	srv := mcp.NewServer(fixtureProvider())

	out := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`)
	result := out["result"].(map[string]interface{})
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
	assert.Equal(t, "energy-services", result["serverInfo"].(map[string]interface{})["name"])

	out = call(t, srv, `{"jsonrpc":"2.0","id":2,"method":"initialize","params":{"protocolVersion":"1999-01-01","clientInfo":{"name":"inspector","version":"0.1"}}}`)
	assert.Equal(t, "2025-03-26", out["result"].(map[string]interface{})["protocolVersion"])

	out = call(t, srv, `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)
	tools := out["result"].(map[string]interface{})["tools"].([]interface{})
	var names []string
	for _, tool := range tools {
		names = append(names, tool.(map[string]interface{})["name"].(string))
	}
	assert.Equal(t, []string{"get_briefing", "query_data", "period_metrics", "compare_regions", "region_timeline", "sector_breakdown", "sector_timeseries"}, names)
}

func TestToolsList_IncludesAssistantWhenConfigured(t *testing.T) {
	srv := mcp.NewServer(fixtureProvider(), mcp.WithChatter(cannedChatter{}))

	out := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	tools := out["result"].(map[string]interface{})["tools"].([]interface{})
	last := tools[len(tools)-1].(map[string]interface{})
	assert.Equal(t, "ask_assistant", last["name"])
}

func TestHandleRequest_ProtocolErrors(t *testing.T) {
	srv := mcp.NewServer(fixtureProvider())

	out := call(t, srv, `not json`)
	assert.Equal(t, float64(mcp.ErrCodeParseError), out["error"].(map[string]interface{})["code"])

	out = call(t, srv, `{"jsonrpc":"1.0","id":1,"method":"tools/list"}`)
	assert.Equal(t, float64(mcp.ErrCodeInvalidRequest), out["error"].(map[string]interface{})["code"])

	out = call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"delete_dataset"}`)
	assert.Equal(t, float64(mcp.ErrCodeMethodNotFound), out["error"].(map[string]interface{})["code"])
}

func TestGetBriefingTool(t *testing.T) {
	srv := mcp.NewServer(fixtureProvider())

	text, isError := toolText(t, srv, "get_briefing", `{"include_prompt":true}`)
	require.False(t, isError, text)

	var result mcp.GetBriefingResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.Equal(t, 2024, result.Briefing.Latest.Year)
	assert.NotEmpty(t, result.Prompt)
	assert.Len(t, result.Suggestions, 10)
	assert.Equal(t, []string{"fossil_growth"}, result.Missing)
}

func TestQueryDataTool(t *testing.T) {
	srv := mcp.NewServer(fixtureProvider())

	text, isError := toolText(t, srv, "query_data", `{"type":"projection","scenario":"Baseline","year":2030}`)
	require.False(t, isError, text)
	var found mcp.QueryDataResult
	require.NoError(t, json.Unmarshal([]byte(text), &found))
	assert.True(t, found.Found)
	assert.Equal(t, "Baseline (STEPS)", found.Result.Scenario)

	text, isError = toolText(t, srv, "query_data", `{"type":"historical","year":1900}`)
	require.False(t, isError, text)
	var missing mcp.QueryDataResult
	require.NoError(t, json.Unmarshal([]byte(text), &missing))
	assert.False(t, missing.Found)
	assert.Nil(t, missing.Result)
}

func TestPeriodMetricsTool(t *testing.T) {
	srv := mcp.NewServer(fixtureProvider())

	text, isError := toolText(t, srv, "period_metrics", `{"region":"China","windows":"current,5year"}`)
	require.False(t, isError, text)

	var result mcp.PeriodMetricsResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.Equal(t, "China", result.Entity.Key)
	require.Len(t, result.Metrics, 2)
	assert.InDelta(t, 2.0, result.Metrics[0].CleanGrowth, 1e-9)

	require.Len(t, result.Sources, 2)
	assert.Equal(t, "solar", result.Sources[0].Sources[0].Source)
	assert.InDelta(t, 1.1, result.Sources[0].TotalDisplacement, 1e-9)
	assert.Equal(t, 2022, result.Sources[1].StartYear)
	assert.InDelta(t, 1.9/5, result.Sources[1].TotalAnnual, 1e-9)

	text, isError = toolText(t, srv, "period_metrics", `{"region":"Atlantis"}`)
	assert.True(t, isError)
	assert.Contains(t, text, "Atlantis")
}

func TestCompareRegionsTool(t *testing.T) {
	srv := mcp.NewServer(fixtureProvider())

	text, isError := toolText(t, srv, "compare_regions", `{"regions":["Europe","China"],"period":"current"}`)
	require.False(t, isError, text)

	var result mcp.CompareRegionsResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	require.Len(t, result.Metrics, 2)
	assert.Equal(t, "China", result.Metrics[0].Entity.Key)

	text, isError = toolText(t, srv, "compare_regions", `{"category":"Major Economies"}`)
	require.False(t, isError, text)
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.Equal(t, []string{"China", "Brazil"}, result.Regions)
}

func TestRegionTimelineTool(t *testing.T) {
	srv := mcp.NewServer(fixtureProvider())

	text, isError := toolText(t, srv, "region_timeline", `{"regions":"[\"China\"]","from_year":2024}`)
	require.False(t, isError, text)

	var result mcp.RegionTimelineResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	require.Len(t, result.Points, 1)
	assert.InDelta(t, 2.0, result.Points[0].Values["China"], 1e-9)
}

func TestSectorTools(t *testing.T) {
	srv := mcp.NewServer(fixtureProvider())

	text, isError := toolText(t, srv, "sector_breakdown", `{}`)
	require.False(t, isError, text)
	var breakdown mcp.SectorBreakdownResult
	require.NoError(t, json.Unmarshal([]byte(text), &breakdown))
	assert.Equal(t, "transport_road", breakdown.Rows[0].Key)

	text, isError = toolText(t, srv, "sector_timeseries", `{"mode":"percentage"}`)
	require.False(t, isError, text)
	var series mcp.SectorTimeseriesResult
	require.NoError(t, json.Unmarshal([]byte(text), &series))
	require.Len(t, series.Rows, 2)
	assert.InDelta(t, 60.0, series.Rows[0].Values["transport_road"], 1e-9)

	text, isError = toolText(t, srv, "sector_timeseries", `{"mode":"3d"}`)
	assert.True(t, isError)
	assert.Contains(t, text, "3d")
}

func TestToolErrorsHideTransportDetail(t *testing.T) {
	srv := mcp.NewServer(failingProvider{})

	text, isError := toolText(t, srv, "get_briefing", `{}`)
	assert.True(t, isError)
	assert.Equal(t, "data unavailable", text)

	out := call(t, srv, `{"jsonrpc":"2.0","id":3,"method":"get_briefing","params":{}}`)
	errObj := out["error"].(map[string]interface{})
	assert.Equal(t, "data unavailable", errObj["message"])
	assert.NotContains(t, errObj["message"], "refused")
	assert.Nil(t, errObj["data"])
}

func TestUnknownTool(t *testing.T) {
	srv := mcp.NewServer(fixtureProvider())

	text, isError := toolText(t, srv, "delete_dataset", `{}`)
	assert.True(t, isError)
	assert.Contains(t, text, "unknown tool")
}

func TestAskAssistantTool(t *testing.T) {
	srv := mcp.NewServer(fixtureProvider(), mcp.WithChatter(cannedChatter{reply: chat.Reply{Content: "Clean services grew 2.45 EJ.", Role: llm.RoleAssistant}}))

	text, isError := toolText(t, srv, "ask_assistant", `{"question":"How fast did clean grow?"}`)
	require.False(t, isError, text)
	assert.Contains(t, text, "2.45 EJ")

	failing := mcp.NewServer(fixtureProvider(), mcp.WithChatter(cannedChatter{reply: chat.Reply{Error: true, Content: llm.UserMessage(llm.KindOverloaded)}}))
	text, isError = toolText(t, failing, "ask_assistant", `{"question":"?"}`)
	assert.True(t, isError)
	assert.Equal(t, llm.UserMessage(llm.KindOverloaded), text)
}

func TestDirectMethodCall(t *testing.T) {
	srv := mcp.NewServer(fixtureProvider())

	out := call(t, srv, `{"jsonrpc":"2.0","id":7,"method":"query_data","params":{"type":"trend","source":"total","startYear":2022,"endYear":2024}}`)
	require.Nil(t, out["error"])
	result := out["result"].(map[string]interface{})
	assert.True(t, result["found"].(bool))
	assert.Equal(t, float64(7), out["id"])
}

func TestStringListForms(t *testing.T) {
	var args mcp.CompareRegionsArgs

	require.NoError(t, json.Unmarshal([]byte(`{"regions":["China","Europe"]}`), &args))
	assert.Equal(t, mcp.StringList{"China", "Europe"}, args.Regions)

	require.NoError(t, json.Unmarshal([]byte(`{"regions":"[\"India\"]"}`), &args))
	assert.Equal(t, mcp.StringList{"India"}, args.Regions)

	require.NoError(t, json.Unmarshal([]byte(`{"regions":"Japan, Brazil"}`), &args))
	assert.Equal(t, mcp.StringList{"Japan", "Brazil"}, args.Regions)
}
