package configutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDurationYAML(t *testing.T) {
	var d Duration
	require.NoError(t, yaml.Unmarshal([]byte(`90s`), &d))
	assert.Equal(t, Duration(90*time.Second), d)

	require.NoError(t, yaml.Unmarshal([]byte(`"3m"`), &d))
	assert.Equal(t, Duration(3*time.Minute), d)

	// Bare numbers are seconds.
	require.NoError(t, yaml.Unmarshal([]byte(`5`), &d))
	assert.Equal(t, Duration(5*time.Second), d)

	out, err := yaml.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, "1m30s\n", string(out))
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1h30m")))
	assert.Equal(t, "1h30m0s", d.String())

	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
