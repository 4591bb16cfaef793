package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workflowai/gateway/adapter"
	"github.com/workflowai/gateway/version"
)

func rawMsg(t *testing.T, role, content string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(map[string]string{"role": role, "content": content})
	require.NoError(t, err)
	return b
}

func TestBuildMessages_RawConversation_NoTemplate(t *testing.T) {
	props := version.Properties{Model: "gpt-4o"}
	conv := []adapter.Message{
		{Role: adapter.RoleUser, Content: []adapter.ContentBlock{{Kind: adapter.BlockText, Text: "Hello, world!"}}},
	}

	res, err := BuildMessages(props, &Schema{IsMessages: true}, Input{Conversation: conv})
	require.Nil(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "Hello, world!", res.Messages[0].Text())
}

func TestBuildMessages_TemplateRendersVariables(t *testing.T) {
	props := version.Properties{
		Model:    "gpt-4o",
		Messages: []json.RawMessage{rawMsg(t, "user", "Hello, {{ name }}!")},
	}

	res, err := BuildMessages(props, &Schema{IsMessages: true}, Input{
		Variables:    map[string]interface{}{"name": "John"},
		Conversation: nil,
	})
	require.Nil(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "Hello, John!", res.Messages[0].Text())
	assert.True(t, res.UsedVariables["name"])
}

func TestBuildMessages_HybridInstructionsAndLeftover(t *testing.T) {
	props := version.Properties{
		Model:        "gpt-4o",
		Instructions: "You are a helpful {{ role }}.",
	}

	res, err := BuildMessages(props, nil, Input{
		Variables: map[string]interface{}{"role": "assistant", "topic": "weather"},
	})
	require.Nil(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, adapter.RoleSystem, res.Messages[0].Role)
	assert.Equal(t, "You are a helpful assistant.", res.Messages[0].Text())
	assert.Equal(t, adapter.RoleUser, res.Messages[1].Role)
	assert.Contains(t, res.Messages[1].Text(), "topic: weather")
	assert.True(t, res.UsedVariables["role"])
	assert.False(t, res.UsedVariables["topic"])
}

func TestBuildMessages_UndefinedTemplateVariable(t *testing.T) {
	props := version.Properties{
		Model:    "gpt-4o",
		Messages: []json.RawMessage{rawMsg(t, "user", "Hello, {{ name }}!")},
	}

	_, err := BuildMessages(props, &Schema{IsMessages: true}, Input{})
	require.NotNil(t, err)
	assert.Equal(t, adapter.KindInvalidTemplate, err.Kind)
}

func TestBuildMessages_StructuredExtractsFiles(t *testing.T) {
	props := version.Properties{Model: "gpt-4o"}
	res, err := BuildMessages(props, &Schema{IsMessages: false}, Input{
		Variables: map[string]interface{}{
			"photo": map[string]interface{}{"url": "https://example.com/a.png", "content_type": "image/png"},
		},
	})
	require.Nil(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "https://example.com/a.png", res.Files[0].URL)
}
