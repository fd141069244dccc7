package simulator

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/energysched/internal/scheduler/configuration"
)

const (
	platformPath     = "/specs/octa.yaml"
	applicationsPath = "/specs/applications.yaml"
	tracePath        = "/traces/worked.csv"
)

const platformYaml = `
processors:
  - type: big
    count: 4
  - type: little
    count: 4
`

// A may run on one big processor for 4s using 10J or on two little ones for 8s using 6J.
// B runs on two big processors for 5s using 12J.
const applicationsYaml = `
applications:
  - name: A
    mappings:
      - demand: {big: 1}
        time: 4
        energy: 10
      - demand: {little: 2}
        time: 8
        energy: 6
  - name: B
    mappings:
      - demand: {big: 2}
        time: 5
        energy: 12
`

const workedTrace = `application,arrival,deadline
A,0,10
B,0,6
`

// The history of admitting A and B at time zero and running to completion.
const workedExampleHistory = `segment 0 [0.000000, 5.000000) energy=15.750000
    request  app  mapping  startCratio  endCratio  energy
    #1       A    A/1      0.000000     0.625000   3.750000
    #2       B    B/0      0.000000     1.000000   12.000000
segment 1 [5.000000, 8.000000) energy=2.250000
    request  app  mapping  startCratio  endCratio  energy
    #1       A    A/1      0.625000     1.000000   2.250000
total energy: 18.000000 end time: 8.000000
`

func testFs(t *testing.T, trace string) afero.Fs {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, platformPath, []byte(platformYaml), 0o644))
	require.NoError(t, afero.WriteFile(fs, applicationsPath, []byte(applicationsYaml), 0o644))
	require.NoError(t, afero.WriteFile(fs, tracePath, []byte(trace), 0o644))
	return fs
}

func testConfig(name, algorithm string) configuration.SchedulingConfig {
	config := configuration.DefaultSchedulingConfig()
	config.Name = name
	config.Algorithm = algorithm
	return config
}
