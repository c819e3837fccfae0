package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeConfigMerge(t *testing.T) {
	node := &Node{
		Id:   "n1",
		Type: NODE_TYPE_ACTION,
		Data: map[string]any{
			"templateName": "top-level",
			"language":     "en",
			"meta": map[string]any{
				"templateName": "from-meta",
				"tag":          "meta-tag",
			},
			"config": map[string]any{
				"templateName": "from-config",
			},
		},
	}
	merged := node.Config()
	require.Equal(t, "from-config", merged["templateName"])
	require.Equal(t, "meta-tag", merged["tag"])
	require.Equal(t, "en", merged["language"])
	require.NotContains(t, merged, "meta")
	require.NotContains(t, merged, "config")
}

func TestDecodeConfig(t *testing.T) {
	node := &Node{
		Id:   "n1",
		Type: NODE_TYPE_ACTION,
		Data: map[string]any{
			"templateName": "welcome",
			"variables":    map[string]any{"1": "Jo"},
			"config": map[string]any{
				"retryMaxAttempts": float64(5),
			},
		},
	}
	cfg, err := DecodeConfig[ActionConfig](node)
	require.NoError(t, err)
	require.Equal(t, "welcome", cfg.TemplateName)
	require.Equal(t, map[string]string{"1": "Jo"}, cfg.Variables)
	require.Equal(t, 5, cfg.RetryMaxAttempts)
}

func TestDecodeConfigEmptyData(t *testing.T) {
	node := &Node{Id: "n1", Type: NODE_TYPE_DELAY}
	cfg, err := DecodeConfig[DelayConfig](node)
	require.NoError(t, err)
	require.Zero(t, cfg.Duration)
	require.Empty(t, cfg.DelayMode)
}
