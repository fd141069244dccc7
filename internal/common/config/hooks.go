package config

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var CustomHooks = []viper.DecoderConfigOption{
	viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		InfinityDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)),
}

// InfinityDecodeHook decodes the strings "inf", "+inf", "infinity" and "none" (case-insensitive) into +Inf when the
// target is a float64. Numeric strings are parsed as usual.
func InfinityDecodeHook() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Float64 {
			return data, nil
		}
		return ParseFloatOrInfinity(data.(string))
	}
}

// ParseFloatOrInfinity parses s as a float, accepting the spellings of infinity understood by InfinityDecodeHook.
func ParseFloatOrInfinity(s string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inf", "+inf", "infinity", "+infinity", "none":
		return math.Inf(1), nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return v, nil
}
