package sim

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/westphae/quaternion"
	"go.uber.org/zap"

	"github.com/westphae/goekf/ekf"
)

// SituationFromFile replays IMU samples recorded in a CSV file.
//
// The header names the columns, in any order: t, dvx, dvy, dvz, dvdt, dax,
// day, daz and dadt are required; roll, pitch and heading, in degrees, are
// optional and give the true attitude.
type SituationFromFile struct {
	t             []float64
	dv1, dv2, dv3 []float64
	dvdt          []float64
	da1, da2, da3 []float64
	dadt          []float64
	phi           []float64
	theta         []float64
	psi           []float64
}

var requiredColumns = []string{"t", "dvx", "dvy", "dvz", "dvdt", "dax", "day", "daz", "dadt"}

// NewSituationFromFile reads a recording from the CSV file fn.
func NewSituationFromFile(fn string, logger *zap.Logger) (*SituationFromFile, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open recording %s", fn)
	}
	defer f.Close()
	sit, err := ReadSituation(bufio.NewReader(f), logger)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read recording %s", fn)
	}
	return sit, nil
}

// ReadSituation reads a recording in CSV form from r. Malformed rows are
// logged and skipped.
func ReadSituation(r io.Reader, logger *zap.Logger) (*SituationFromFile, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	// Read header line
	rec, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "cannot read header")
	}
	fields := make(map[int]string, len(rec))
	seen := make(map[string]bool, len(rec))
	for i, k := range rec {
		fields[i] = k
		seen[k] = true
	}
	for _, k := range requiredColumns {
		if !seen[k] {
			return nil, errors.Errorf("missing column %q", k)
		}
	}
	hasTruth := seen["roll"] && seen["pitch"] && seen["heading"]

	sit := new(SituationFromFile)
	row := make(map[string]float64, len(rec))
	line := 1
	for {
		rec, err = cr.Read()
		line++
		if err == io.EOF {
			break
		} else if err != nil {
			logger.Warn("csv error, skipping row", zap.Int("line", line), zap.Error(err))
			continue
		}

		bad := false
		for i, k := range rec {
			v, err := strconv.ParseFloat(k, 64)
			if err != nil {
				logger.Warn("csv contains bad data, skipping row", zap.Int("line", line), zap.Error(err))
				bad = true
				break
			}
			row[fields[i]] = v
		}
		if bad {
			continue
		}
		if n := len(sit.t); n > 0 && row["t"] <= sit.t[n-1] {
			logger.Warn("csv time not increasing, skipping row", zap.Int("line", line), zap.Float64("t", row["t"]))
			continue
		}

		sit.t = append(sit.t, row["t"])
		sit.dv1 = append(sit.dv1, row["dvx"])
		sit.dv2 = append(sit.dv2, row["dvy"])
		sit.dv3 = append(sit.dv3, row["dvz"])
		sit.dvdt = append(sit.dvdt, row["dvdt"])
		sit.da1 = append(sit.da1, row["dax"])
		sit.da2 = append(sit.da2, row["day"])
		sit.da3 = append(sit.da3, row["daz"])
		sit.dadt = append(sit.dadt, row["dadt"])
		if hasTruth {
			sit.phi = append(sit.phi, row["roll"]*ekf.Deg)
			sit.theta = append(sit.theta, row["pitch"]*ekf.Deg)
			sit.psi = append(sit.psi, row["heading"]*ekf.Deg)
		}
	}

	if len(sit.t) < 2 {
		return nil, errors.Errorf("need at least 2 samples, found %d", len(sit.t))
	}
	return sit, nil
}

// BeginTime returns the time stamp when the records begin
func (s *SituationFromFile) BeginTime() float64 {
	return s.t[0]
}

// EndTime returns the time stamp of the last record
func (s *SituationFromFile) EndTime() float64 {
	return s.t[len(s.t)-1]
}

// index returns the first record at or after t.
func (s *SituationFromFile) index(t float64) (int, error) {
	if t < s.t[0]-ekf.Small || t > s.t[len(s.t)-1]+ekf.Small {
		return 0, ErrOutsideScenario
	}
	ix := sort.SearchFloat64s(s.t, t-ekf.Small)
	if ix >= len(s.t) {
		ix = len(s.t) - 1
	}
	return ix, nil
}

// Attitude interpolates the recorded attitude, if there is one.
func (s *SituationFromFile) Attitude(t float64) (quaternion.Quaternion, error) {
	if s.phi == nil {
		return quaternion.Quaternion{}, ErrNoTruth
	}
	ix, err := s.index(t)
	if err != nil {
		return quaternion.Quaternion{}, err
	}
	if ix == 0 {
		return ekf.ToQuaternion(s.phi[0], s.theta[0], s.psi[0]), nil
	}

	f := (s.t[ix] - t) / (s.t[ix] - s.t[ix-1])
	psi0 := s.psi[ix-1]
	psi1 := psi0 + ekf.Regularize(s.psi[ix]-psi0)
	return ekf.ToQuaternion(
		f*s.phi[ix-1]+(1-f)*s.phi[ix],
		f*s.theta[ix-1]+(1-f)*s.theta[ix],
		f*psi0+(1-f)*psi1), nil
}

// Sample returns the record ending at or just after t, as recorded. dt is not
// used since each record carries its own integration intervals; Run visits
// every record once through Times.
func (s *SituationFromFile) Sample(t, dt float64, m *ekf.IMUSample) error {
	ix, err := s.index(t)
	if err != nil {
		return err
	}
	m.T = s.t[ix]
	m.DeltaVel = r3.Vector{X: s.dv1[ix], Y: s.dv2[ix], Z: s.dv3[ix]}
	m.DeltaVelDt = s.dvdt[ix]
	m.DeltaAng = r3.Vector{X: s.da1[ix], Y: s.da2[ix], Z: s.da3[ix]}
	m.DeltaAngDt = s.dadt[ix]
	return nil
}

// Times returns the record time stamps.
func (s *SituationFromFile) Times() []float64 {
	return s.t
}
