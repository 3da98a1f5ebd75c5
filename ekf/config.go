package ekf

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Config holds the tunable parameters of the filter.
type Config struct {
	Gravity      float64 `json:"gravity"`       // Magnitude of gravity, m/s²
	GravityNoise float64 `json:"gravity_noise"` // Variance of a gravity measurement component, (m/s²)²
	ImuDt        float64 `json:"imu_dt"`        // Nominal IMU interval, s

	// Initial state standard deviations, squared into the covariance
	InitQuatSigma       float64 `json:"init_quat_sigma"`
	InitVelSigma        float64 `json:"init_vel_sigma"`          // m/s
	InitPosSigma        float64 `json:"init_pos_sigma"`          // m
	InitDelAngBiasSigma float64 `json:"init_del_ang_bias_sigma"` // rad per IMU interval
	InitDelVelBiasSigma float64 `json:"init_del_vel_bias_sigma"` // m/s per IMU interval
	InitMagSigma        float64 `json:"init_mag_sigma"`          // gauss
	InitWindSigma       float64 `json:"init_wind_sigma"`         // m/s

	QuatProcessNoise float64 `json:"quat_process_noise"` // Quaternion variance growth per s, simulator only
	AccelTolerance   float64 `json:"accel_tolerance"`    // Fraction of g the specific force may deviate before gravity is not fused
}

// DefaultConfig returns the configuration used when none is given.
// GravityNoise is the reference model constant, not derived from an
// accelerometer noise figure.
func DefaultConfig() Config {
	return Config{
		Gravity:             G,
		GravityNoise:        1.0,
		ImuDt:               0.008,
		InitQuatSigma:       0.1,
		InitVelSigma:        0.5,
		InitPosSigma:        0.5,
		InitDelAngBiasSigma: 0.1 * Deg * 0.008,
		InitDelVelBiasSigma: 0.2 * 0.008,
		InitMagSigma:        0.05,
		InitWindSigma:       1,
		QuatProcessNoise:    1e-5,
		AccelTolerance:      0.1,
	}
}

// Validate checks that the configuration can drive the filter.
func (c *Config) Validate() error {
	if !(c.Gravity > 0) {
		return errors.Errorf("gravity must be positive, was %v", c.Gravity)
	}
	if !(c.GravityNoise > 0) {
		return errors.Errorf("gravity_noise must be positive, was %v", c.GravityNoise)
	}
	if !(c.ImuDt > 0) {
		return errors.Errorf("imu_dt must be positive, was %v", c.ImuDt)
	}
	for name, v := range map[string]float64{
		"init_quat_sigma":         c.InitQuatSigma,
		"init_vel_sigma":          c.InitVelSigma,
		"init_pos_sigma":          c.InitPosSigma,
		"init_del_ang_bias_sigma": c.InitDelAngBiasSigma,
		"init_del_vel_bias_sigma": c.InitDelVelBiasSigma,
		"init_mag_sigma":          c.InitMagSigma,
		"init_wind_sigma":         c.InitWindSigma,
		"quat_process_noise":      c.QuatProcessNoise,
		"accel_tolerance":         c.AccelTolerance,
	} {
		if v < 0 {
			return errors.Errorf("%s must not be negative, was %v", name, v)
		}
	}
	return nil
}

// LoadConfig reads a JSON configuration from fn. Fields missing from the file
// keep their DefaultConfig values.
func LoadConfig(fn string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(fn)
	if err != nil {
		return cfg, errors.Wrapf(err, "error reading ekf config from %s", fn)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "error parsing ekf config from %s", fn)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid ekf config in %s", fn)
	}
	return cfg, nil
}
