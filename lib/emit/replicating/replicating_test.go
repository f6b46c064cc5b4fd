package replicating

import (
	"bytes"
	_c "context"
	"tablestream/lib/context"
	"tablestream/lib/properties"
	"tablestream/stream"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const config = `
source:
  harvest:
    outputs: ["sink\\..*"]
  lonely:
    outputs: ["sink.missing"]
sink:
  console: {}
  kafka: {}
operator:
  filter: {}
`

func TestGenerate(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(config)))
	root := context.New(_c.Background(), properties.FromViper(v))

	received := map[string]int{}
	generator := func(name string) stream.EmitGenerator {
		return func(stream.Context) stream.Emit {
			return func(*stream.Event) { received[name]++ }
		}
	}
	console, kafka, filter := root.Named("sink.console"), root.Named("sink.kafka"), root.Named("operator.filter")
	all := map[stream.Context]stream.EmitGenerator{
		console: generator("console"),
		kafka:   generator("kafka"),
		filter:  generator("filter"),
	}
	topology := map[stream.Context][]stream.Context{}
	harvest := root.Named("source.harvest")

	emitNext := Generate(harvest, all, topology)
	emitNext(&stream.Event{})
	emitNext(&stream.Event{})

	assert.Equal(t, map[string]int{"console": 2, "kafka": 2}, received)
	assert.Equal(t, []stream.Context{harvest}, topology[console])
	assert.Empty(t, topology[filter])

	assert.Panics(t, func() { Generate(root.Named("source.lonely"), all, topology) })
}
