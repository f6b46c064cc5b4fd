package properties

import (
	"bytes"
	"fmt"
	"strconv"
	"tablestream/stream"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

var (
	ErrPropertyNoSet = fmt.Errorf("property is required, but not set")
	ErrPropertyIsNil = fmt.Errorf("property and property default is nil")
)

type properties struct {
	*viper.Viper
	runtime *viper.Viper
}

func (p *properties) Sub(key string) stream.Properties {
	sub := p.Viper.Sub(key)
	if sub == nil {
		return nil
	}
	return &properties{Viper: sub, runtime: p.runtime}
}

func (p *properties) PrefixKeys(prefix string) []string {
	all := p.Viper.GetStringMap(prefix)
	keys := make([]string, 0, len(all))
	for key := range all {
		keys = append(keys, key)
	}
	return keys
}

func (p *properties) Global() stream.Properties {
	return &properties{Viper: p.runtime, runtime: p.runtime}
}

func (p *properties) GetStringSlice(property stream.Property) []string {
	return p.Viper.GetStringSlice(property.Name())
}

func (p *properties) GetString(property stream.Property) string {
	return p.Viper.GetString(property.Name())
}

func (p *properties) GetInt(property stream.Property) int {
	return p.Viper.GetInt(property.Name())
}

func (p *properties) GetInt32(property stream.Property) int32 {
	return p.Viper.GetInt32(property.Name())
}

func (p *properties) GetUint64(property stream.Property) uint64 {
	return p.Viper.GetUint64(property.Name())
}

func (p *properties) GetBool(property stream.Property) bool {
	return cast.ToBool(p.Viper.Get(property.Name()))
}

func (p *properties) GetDuration(property stream.Property) time.Duration {
	return p.Viper.GetDuration(property.Name())
}

//InitAndRender check required properties, apply defaults and render the effective values.
func InitAndRender(p stream.Properties, def stream.PropertiesDef) (string, error) {
	switch _p := p.(type) {
	case *properties:
		buffer := &bytes.Buffer{}
		tWriter := tablewriter.NewWriter(buffer)
		tWriter.SetHeader([]string{"name", "type", "value"})
		tWriter.SetAutoFormatHeaders(false)
		tWriter.SetAutoWrapText(false)

		for _, _property := range def {
			if _property.Required() {
				if !_p.Viper.IsSet(_property.Name()) {
					return "", errors.WithMessage(ErrPropertyNoSet, _property.Name())
				}
			} else {
				if _property.Default() == nil && !_p.Viper.IsSet(_property.Name()) {
					return "", errors.WithMessage(ErrPropertyIsNil, _property.Name())
				} else {
					_p.Viper.SetDefault(_property.Name(), _property.Default())
				}
			}
			tWriter.Append([]string{
				_property.Name(),
				_property.Type(),
				render(_property, _p.Viper.Get(_property.Name())),
			})
		}
		tWriter.Render()
		return buffer.String(), nil
	default:
		return "", nil
	}
}

func render(property stream.Property, value interface{}) string {
	if s, ok := property.(interface{ Secret() bool }); ok && s.Secret() && cast.ToString(value) != "" {
		return "******"
	}
	return fmt.Sprintf("%+v", value)
}

func RenderDef(p stream.PropertiesDef) string {
	buffer := &bytes.Buffer{}
	tWriter := tablewriter.NewWriter(buffer)
	tWriter.SetHeader([]string{"name", "description", "required", "type", "default"})
	tWriter.SetAutoFormatHeaders(false)
	tWriter.SetAutoWrapText(false)
	for _, p := range p {
		tWriter.Append([]string{
			p.Name(),
			p.Description(),
			strconv.FormatBool(p.Required()),
			p.Type(),
			fmt.Sprintf("%+v", p.Default()),
		})
	}
	tWriter.Render()
	return buffer.String()
}

//New read the configuration file, the "global" sub tree becomes the runtime properties.
func New(propertiesName string, propertiesType string, propertiesPath ...string) (stream.Properties, error) {
	v := viper.New()
	v.SetConfigName(propertiesName)
	v.SetConfigType(propertiesType)
	for _, p := range propertiesPath {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.WithMessage(err, "read config error")
	}
	return FromViper(v), nil
}

func FromViper(v *viper.Viper) stream.Properties {
	runtime := v.Sub("global")
	if runtime == nil {
		runtime = viper.New()
	}
	return &properties{Viper: v, runtime: runtime}
}
