package types

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretString_NeverPrintsValue(t *testing.T) {
	s := SecretString("postgres://user:hunter2@db/messages")

	assert.Equal(t, redactedPlaceholder, s.String())
	assert.NotContains(t, fmt.Sprintf("%s %v", s, s), "hunter2")

	body, err := json.Marshal(struct {
		URL SecretString `json:"url"`
	}{URL: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"***REDACTED***"}`, string(body))

	assert.Equal(t, "postgres://user:hunter2@db/messages", s.Unmask())
}
