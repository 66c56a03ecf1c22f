package desktop

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestNotify_DisabledInTests(t *testing.T) {
	t.Setenv("DISPLAY", ":0")
	assert.False(t, enabled())
	// Must not block or fail
	Notify("title", "body")
}

func TestNotify_DisabledByFlag(t *testing.T) {
	viper.Set("no-notifications", true)
	defer viper.Reset()
	assert.False(t, enabled())
}
