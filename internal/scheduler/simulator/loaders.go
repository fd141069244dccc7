package simulator

import (
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/mattn/go-zglob"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	commonconfig "github.com/armadaproject/energysched/internal/common/config"
	"github.com/armadaproject/energysched/internal/common/schederrors"
	"github.com/armadaproject/energysched/internal/scheduler/configuration"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
)

// SchedulingConfigsFromPattern loads every scheduling config matching pattern on the local filesystem.
// Patterns may use ** to match any number of directories.
func SchedulingConfigsFromPattern(pattern string) ([]configuration.SchedulingConfig, error) {
	filePaths, err := zglob.Glob(pattern)
	if err != nil {
		return nil, errors.WithMessagef(err, "no scheduling configs match %s", pattern)
	}
	return SchedulingConfigsFromFilePaths(afero.NewOsFs(), filePaths)
}

func SchedulingConfigsFromFilePaths(fs afero.Fs, filePaths []string) ([]configuration.SchedulingConfig, error) {
	rv := make([]configuration.SchedulingConfig, len(filePaths))
	for i, filePath := range filePaths {
		config, err := SchedulingConfigFromFilePath(fs, filePath)
		if err != nil {
			return nil, err
		}
		rv[i] = config
	}
	return rv, nil
}

// SchedulingConfigFromFilePath loads a scheduling config. Fields absent from the file keep their default values.
func SchedulingConfigFromFilePath(fs afero.Fs, filePath string) (configuration.SchedulingConfig, error) {
	config := configuration.DefaultSchedulingConfig()
	if err := unmarshalFile(fs, filePath, "SchedulingConfig", &config); err != nil {
		return config, err
	}
	if config.Name == "" {
		config.Name = nameFromFilePath(filePath)
	}
	if err := config.Validate(); err != nil {
		return config, errors.WithMessagef(commonconfig.DescribeValidationErrors(err), "invalid SchedulingConfig %s", filePath)
	}
	return config, nil
}

func PlatformSpecFromFilePath(fs afero.Fs, filePath string) (configuration.PlatformSpec, error) {
	spec := configuration.PlatformSpec{}
	if err := unmarshalFile(fs, filePath, "PlatformSpec", &spec); err != nil {
		return spec, err
	}
	if spec.Name == "" {
		spec.Name = nameFromFilePath(filePath)
	}
	if err := spec.Validate(); err != nil {
		return spec, errors.WithMessagef(commonconfig.DescribeValidationErrors(err), "invalid PlatformSpec %s", filePath)
	}
	return spec, nil
}

func ApplicationsSpecFromFilePath(fs afero.Fs, filePath string) (configuration.ApplicationsSpec, error) {
	spec := configuration.ApplicationsSpec{}
	if err := unmarshalFile(fs, filePath, "ApplicationsSpec", &spec); err != nil {
		return spec, err
	}
	if err := spec.Validate(); err != nil {
		return spec, errors.WithMessagef(commonconfig.DescribeValidationErrors(err), "invalid ApplicationsSpec %s", filePath)
	}
	return spec, nil
}

// MappingsByApplication converts the application specs into canonical mappings for platform. Every invalid mapping
// and duplicated application is reported.
func MappingsByApplication(
	platform *internaltypes.StaticPlatform,
	spec configuration.ApplicationsSpec,
) (map[string][]*internaltypes.CanonicalMapping, error) {
	var result *multierror.Error
	rv := make(map[string][]*internaltypes.CanonicalMapping, len(spec.Applications))
	for _, app := range spec.Applications {
		if _, ok := rv[app.Name]; ok {
			result = multierror.Append(result, errors.WithStack(&schederrors.ErrInvalidArgument{
				Name:    "application",
				Value:   app.Name,
				Message: "application defined more than once",
			}))
			continue
		}
		mappings, err := internaltypes.MappingsFromSpec(platform, app)
		if err != nil {
			result = multierror.Append(result, errors.WithMessagef(err, "application %s", app.Name))
			continue
		}
		rv[app.Name] = mappings
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return rv, nil
}

func unmarshalFile(fs afero.Fs, filePath string, kind string, out any) error {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetFs(fs)
	v.SetConfigFile(filePath)
	if err := v.ReadInConfig(); err != nil {
		err = errors.WithMessagef(err, "failed to read in %s %s", kind, filePath)
		return errors.WithStack(err)
	}
	if err := v.Unmarshal(out, commonconfig.CustomHooks...); err != nil {
		err = errors.WithMessagef(err, "failed to unmarshal %s %s", kind, filePath)
		return errors.WithStack(err)
	}
	return nil
}

// nameFromFilePath returns the file name without directory or extension.
func nameFromFilePath(filePath string) string {
	fileName := filepath.Base(filePath)
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}
