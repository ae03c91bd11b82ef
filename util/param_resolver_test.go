package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func resolverData() map[string]any {
	return map[string]any{
		"trigger": map[string]any{
			"subject": "Quarterly numbers",
			"from":    "human@example.com",
		},
		"currentRound": 2,
		"tags":         []any{"finance", "q3"},
	}
}

func TestResolveTemplate(t *testing.T) {
	data := resolverData()
	scenarios := map[string]struct {
		input    string
		expected string
	}{
		"no tokens":          {input: "plain text", expected: "plain text"},
		"single token":       {input: "Re: {$.trigger.subject}", expected: "Re: Quarterly numbers"},
		"multiple tokens":    {input: "{$.trigger.from}: {$.trigger.subject}", expected: "human@example.com: Quarterly numbers"},
		"numeric value":      {input: "round {$.currentRound}", expected: "round 2"},
		"unknown path":       {input: "x{$.missing}y", expected: "xy"},
		"non jsonpath brace": {input: "set {verbatim}", expected: "set {verbatim}"},
	}
	for name, scenario := range scenarios {
		require.Equal(t, scenario.expected, ResolveTemplate(data, scenario.input), name)
	}
}

func TestResolveParamsRecurses(t *testing.T) {
	data := resolverData()
	params := map[string]any{
		"subject": "{$.trigger.subject}",
		"count":   3,
		"nested": map[string]any{
			"requestedBy": "{$.trigger.from}",
		},
		"list": []any{"{$.trigger.subject}", 7},
	}

	resolved := ResolveParams(data, params)
	require.Equal(t, "Quarterly numbers", resolved["subject"])
	require.Equal(t, 3, resolved["count"])
	require.Equal(t, "human@example.com", resolved["nested"].(map[string]any)["requestedBy"])
	require.Equal(t, "Quarterly numbers", resolved["list"].([]any)[0])
	require.Equal(t, 7, resolved["list"].([]any)[1])

	// input map untouched
	require.Equal(t, "{$.trigger.subject}", params["subject"])
}
