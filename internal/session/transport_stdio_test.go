package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStdioProxy(t *testing.T) *StdioProxy {
	t.Helper()
	router := newTestRouter(t)
	repo := NewInMemoryRepository(0)
	t.Cleanup(repo.Close)
	return NewStdioProxy(router, repo)
}

func TestStdioProxyRunEchoesResponsesLineByLine(t *testing.T) {
	p := newTestStdioProxy(t)

	input := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n",
	)
	var out bytes.Buffer

	err := p.Run(context.Background(), input, &out, "", "", "", "")
	require.NoError(t, err)

	scanner := bufio.NewScanner(&out)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	var first, second rpcResponse
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Nil(t, first.Error)
	assert.Nil(t, second.Error)
}

func TestStdioProxyRunSkipsUnparseableLines(t *testing.T) {
	p := newTestStdioProxy(t)

	input := strings.NewReader(
		"not json at all\n" +
			`{"jsonrpc":"2.0","id":1,"method":"initialize"}` + "\n",
	)
	var out bytes.Buffer

	err := p.Run(context.Background(), input, &out, "", "", "", "")
	require.NoError(t, err)

	scanner := bufio.NewScanner(&out)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 1)
}

func TestStdioProxyRunOmitsResponseForNotifications(t *testing.T) {
	p := newTestStdioProxy(t)

	input := strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n")
	var out bytes.Buffer

	err := p.Run(context.Background(), input, &out, "", "", "", "")
	require.NoError(t, err)
	assert.Empty(t, out.Bytes())
}

func TestParseContextParamsDecodesKeyValuePairs(t *testing.T) {
	ctx := parseContextParams("project=foo&user=bar")
	assert.Equal(t, "foo", ctx["project"])
	assert.Equal(t, "bar", ctx["user"])
}

func TestParseContextParamsEmptyStringReturnsNil(t *testing.T) {
	assert.Nil(t, parseContextParams(""))
}
