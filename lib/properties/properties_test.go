package properties

import (
	"bytes"
	"tablestream/stream"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const config = `
global:
  log-level: debug
source:
  harvest:
    type: aztable
    table-name: WADLogsTable
    access-key: c2VjcmV0
    idle-delay: 15s
sink:
  console:
    type: echo
`

func newTestProperties(t *testing.T) stream.Properties {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(config)))
	return FromViper(v)
}

var (
	tableProperty  = NewRequiredProperty[string]("table-name", "")
	pageProperty   = NewProperty[int32]("page-size", "", 0)
	delayProperty  = NewProperty[time.Duration]("idle-delay", "", time.Second)
	keyProperty    = NewSecretProperty("access-key", "")
	missedProperty = NewRequiredProperty[string]("account-name", "")
)

func TestPrefixKeysAndSub(t *testing.T) {
	p := newTestProperties(t)
	assert.ElementsMatch(t, []string{"harvest"}, p.PrefixKeys("source"))
	assert.ElementsMatch(t, []string{"console"}, p.PrefixKeys("sink"))
	assert.Nil(t, p.Sub("operator"))

	harvest := p.Sub("source").Sub("harvest")
	require.NotNil(t, harvest)
	assert.Equal(t, "WADLogsTable", harvest.GetString(tableProperty))
	assert.Equal(t, 15*time.Second, harvest.GetDuration(delayProperty))
	assert.Equal(t, "debug", harvest.Global().GetString(NewRequiredProperty[string]("log-level", "")))
}

func TestInitAndRender(t *testing.T) {
	harvest := newTestProperties(t).Sub("source").Sub("harvest")

	text, err := InitAndRender(harvest, stream.PropertiesDef{tableProperty, pageProperty, delayProperty, keyProperty})
	require.NoError(t, err)
	assert.Contains(t, text, "WADLogsTable")
	assert.Contains(t, text, "******")
	assert.NotContains(t, text, "c2VjcmV0")
	assert.Equal(t, int32(0), harvest.GetInt32(pageProperty))

	_, err = InitAndRender(harvest, stream.PropertiesDef{missedProperty})
	assert.ErrorIs(t, err, ErrPropertyNoSet)
}

func TestPropertyDef(t *testing.T) {
	assert.True(t, tableProperty.Required())
	assert.False(t, pageProperty.Required())
	assert.Equal(t, "int32", pageProperty.Type())
	assert.Equal(t, "time.Duration", delayProperty.Type())

	text := RenderDef(stream.PropertiesDef{tableProperty, pageProperty})
	assert.Contains(t, text, "table-name")
	assert.Contains(t, text, "page-size")
}
