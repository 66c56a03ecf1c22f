package log

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

var buf bytes.Buffer

func TestMain(m *testing.M) {
	Output = &buf
	disableColor = true

	viper.Set("verbose", false)
	code := m.Run()
	viper.Set("verbose", false)

	Output = os.Stderr
	os.Exit(code)
}

func TestDebugf_NoVerbose(t *testing.T) {
	buf.Reset()
	Debugf("Test")
	assert.Empty(t, buf.String())
}

func TestDebugf_Verbose(t *testing.T) {
	buf.Reset()
	viper.Set("verbose", true)
	defer viper.Set("verbose", false)

	Debugf("Test")
	assert.Contains(t, buf.String(), "Test")
}

func TestError_UsesErrorMessage(t *testing.T) {
	buf.Reset()
	Error(errors.New("Test Error"))
	assert.Contains(t, buf.String(), "Test Error")
}

func TestErrorf(t *testing.T) {
	buf.Reset()
	Errorf(errors.New("Test Error"), "something %s", "failed")
	assert.Contains(t, buf.String(), "something failed")
	assert.NotContains(t, buf.String(), "Test Error")
}

func TestPrint_AppendsNewline(t *testing.T) {
	buf.Reset()
	Printf("no newline")
	assert.Equal(t, "no newline\n", buf.String())
}

func TestSeparator(t *testing.T) {
	buf.Reset()
	Separator()
	assert.Equal(t, strings.Repeat("─", 80)+"\n", buf.String())
}
