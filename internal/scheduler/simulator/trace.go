package simulator

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	commonconfig "github.com/armadaproject/energysched/internal/common/config"
	"github.com/armadaproject/energysched/internal/common/schederrors"
)

// Arrival is one row of a trace: a request for an application arriving at a given simulated time.
type Arrival struct {
	Application string
	Arrival     float64
	// Relative to Arrival. +Inf if the request has no deadline.
	Deadline    float64
	StartCratio float64
}

const (
	applicationColumn = "application"
	arrivalColumn     = "arrival"
	deadlineColumn    = "deadline"
	startCratioColumn = "startcratio"
)

var defaultColumns = []string{applicationColumn, arrivalColumn, deadlineColumn, startCratioColumn}

// TraceFromFilePath reads the trace at filePath from fs.
func TraceFromFilePath(fs afero.Fs, filePath string) ([]Arrival, error) {
	f, err := fs.Open(filePath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	arrivals, err := ReadTrace(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to read trace %s", filePath)
	}
	return arrivals, nil
}

// ReadTrace parses a CSV trace with rows application,arrival,deadline[,startCratio]. The first row is treated as a
// header if its arrival field is not a number; a header may list the columns in any order. A negative deadline, or
// one of the spellings of infinity, means the request has no deadline. Lines starting with # are ignored.
// All malformed rows are reported together.
func ReadTrace(r io.Reader) ([]Arrival, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	columns := defaultColumns
	if isHeader(records[0]) {
		columns, err = parseHeader(records[0])
		if err != nil {
			return nil, err
		}
		records = records[1:]
	}

	var result *multierror.Error
	arrivals := make([]Arrival, 0, len(records))
	for i, record := range records {
		arrival, err := parseArrival(columns, record)
		if err != nil {
			result = multierror.Append(result, errors.WithMessagef(err, "row %d", i+1))
			continue
		}
		arrivals = append(arrivals, arrival)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return arrivals, nil
}

func isHeader(record []string) bool {
	if len(record) < 2 {
		return false
	}
	_, err := commonconfig.ParseFloatOrInfinity(record[1])
	return err != nil
}

func parseHeader(record []string) ([]string, error) {
	columns := make([]string, len(record))
	seen := make(map[string]bool, len(record))
	for i, name := range record {
		column := strings.ToLower(strings.TrimSpace(name))
		switch column {
		case applicationColumn, arrivalColumn, deadlineColumn, startCratioColumn:
		default:
			return nil, errors.WithStack(&schederrors.ErrInvalidArgument{
				Name:    "header",
				Value:   name,
				Message: fmt.Sprintf("unknown trace column; expected one of %v", defaultColumns),
			})
		}
		if seen[column] {
			return nil, errors.WithStack(&schederrors.ErrInvalidArgument{Name: "header", Value: name, Message: "duplicate trace column"})
		}
		seen[column] = true
		columns[i] = column
	}
	for _, required := range defaultColumns[:3] {
		if !seen[required] {
			return nil, errors.WithStack(&schederrors.ErrInvalidArgument{Name: "header", Value: record, Message: "missing column " + required})
		}
	}
	return columns, nil
}

func parseArrival(columns []string, record []string) (Arrival, error) {
	if len(record) < 3 || len(record) > len(columns) {
		return Arrival{}, errors.WithStack(&schederrors.ErrInvalidArgument{
			Name:    "record",
			Value:   record,
			Message: fmt.Sprintf("expected between 3 and %d fields", len(columns)),
		})
	}
	var arrival Arrival
	for i, field := range record {
		field = strings.TrimSpace(field)
		switch columns[i] {
		case applicationColumn:
			arrival.Application = field
		case arrivalColumn:
			v, err := commonconfig.ParseFloatOrInfinity(field)
			if err != nil {
				return Arrival{}, errors.WithMessage(err, arrivalColumn)
			}
			arrival.Arrival = v
		case deadlineColumn:
			v, err := commonconfig.ParseFloatOrInfinity(field)
			if err != nil {
				return Arrival{}, errors.WithMessage(err, deadlineColumn)
			}
			if v < 0 {
				v = math.Inf(1)
			}
			arrival.Deadline = v
		case startCratioColumn:
			if field == "" {
				continue
			}
			v, err := commonconfig.ParseFloatOrInfinity(field)
			if err != nil {
				return Arrival{}, errors.WithMessage(err, startCratioColumn)
			}
			arrival.StartCratio = v
		}
	}
	return arrival, validateArrival(arrival)
}

func validateArrival(arrival Arrival) error {
	var result *multierror.Error
	if arrival.Application == "" {
		result = multierror.Append(result, &schederrors.ErrInvalidArgument{Name: applicationColumn, Value: arrival.Application, Message: "must not be empty"})
	}
	if arrival.Arrival < 0 || math.IsInf(arrival.Arrival, 0) || math.IsNaN(arrival.Arrival) {
		result = multierror.Append(result, &schederrors.ErrInvalidArgument{Name: arrivalColumn, Value: arrival.Arrival, Message: "must be finite and non-negative"})
	}
	if math.IsNaN(arrival.Deadline) {
		result = multierror.Append(result, &schederrors.ErrInvalidArgument{Name: deadlineColumn, Value: arrival.Deadline, Message: "must be a number"})
	}
	if !(arrival.StartCratio >= 0 && arrival.StartCratio <= 1) {
		result = multierror.Append(result, &schederrors.ErrInvalidArgument{Name: "startCratio", Value: arrival.StartCratio, Message: "must be in [0, 1]"})
	}
	return result.ErrorOrNil()
}
