package timeutils_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/informalsystems/cert-load-test/pkg/timeutils"
)

func TestJSONParsing(t *testing.T) {
	testCases := []struct {
		jsonObj  string
		expected time.Duration
	}{
		{`{"value": "10s"}`, 10 * time.Second},
		{`{"value": "3h"}`, 3 * time.Hour},
		{`{"value": "5m"}`, 5 * time.Minute},
	}

	for i, tc := range testCases {
		actual := struct {
			Value timeutils.ParseableDuration `json:"value"`
		}{}
		require.NoError(t, json.Unmarshal([]byte(tc.jsonObj), &actual), "test case %d", i)
		assert.Equal(t, tc.expected, actual.Value.Duration(), "test case %d", i)
	}
}

func TestYAMLParsing(t *testing.T) {
	testCases := []struct {
		yamlDoc  string
		expected time.Duration
		err      bool
	}{
		{"value: 10s", 10 * time.Second, false},
		{"value: 1m30s", 90 * time.Second, false},
		{"value: \"250ms\"", 250 * time.Millisecond, false},
		{"value: 10", 0, true},
		{"value: [1s]", 0, true},
	}

	for i, tc := range testCases {
		actual := struct {
			Value timeutils.ParseableDuration `yaml:"value"`
		}{}
		err := yaml.Unmarshal([]byte(tc.yamlDoc), &actual)
		if tc.err {
			assert.Error(t, err, "test case %d", i)
			continue
		}
		require.NoError(t, err, "test case %d", i)
		assert.Equal(t, tc.expected, actual.Value.Duration(), "test case %d", i)
	}
}

func TestMarshalling(t *testing.T) {
	b, err := json.Marshal(struct {
		Value timeutils.ParseableDuration `json:"value"`
	}{timeutils.ParseableDuration(90 * time.Second)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"value": "1m30s"}`, string(b))
}
