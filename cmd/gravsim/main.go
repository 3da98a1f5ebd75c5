/*
Gravsim exercises the gravity fusion of package ekf.
Pick a scenario, or replay a recording, synthesize the IMU data with some
noise and bias if desired, and see how well the filter recovers the true
attitude from a deliberately wrong start.
*/
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/westphae/goekf/ekf"
	"github.com/westphae/goekf/sim"
)

const (
	flagScenario   = "scenario"
	flagConfig     = "config"
	flagDuration   = "duration"
	flagDt         = "dt"
	flagAccelNoise = "accel-noise"
	flagAccelBias  = "accel-bias"
	flagGyroNoise  = "gyro-noise"
	flagTiltError  = "tilt-error"
	flagNoGating   = "no-gating"
	flagSeed       = "seed"
	flagLog        = "log"
	flagDebug      = "debug"
)

func parseVector(str string) (v r3.Vector, err error) {
	parts := strings.Split(str, ",")
	if len(parts) != 3 {
		return v, errors.Errorf("need 3 comma-separated values, got %q", str)
	}
	var a [3]float64
	for i, s := range parts {
		if a[i], err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return v, errors.Wrapf(err, "bad value in %q", str)
		}
	}
	return r3.Vector{X: a[0], Y: a[1], Z: a[2]}, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadSituation(c *cli.Context, logger *zap.Logger) (sim.Situation, error) {
	name := c.String(flagScenario)
	builtin, ok := sim.Scenarios[name]
	if !ok {
		logger.Info("loading recording", zap.String("file", name))
		return sim.NewSituationFromFile(name, logger)
	}

	bias, err := parseVector(c.String(flagAccelBias))
	if err != nil {
		return nil, errors.Wrap(err, "cannot parse --accel-bias")
	}
	return builtin.WithErrors(sim.SensorErrors{
		AccelNoise: c.Float64(flagAccelNoise),
		AccelBias:  bias,
		GyroNoise:  c.Float64(flagGyroNoise) * ekf.Deg,
	}, c.Int64(flagSeed)), nil
}

func run(c *cli.Context) error {
	logger, err := newLogger(c.Bool(flagDebug))
	if err != nil {
		return errors.Wrap(err, "cannot create logger")
	}
	defer logger.Sync() //nolint:errcheck

	cfg := ekf.DefaultConfig()
	if fn := c.String(flagConfig); fn != "" {
		if cfg, err = ekf.LoadConfig(fn); err != nil {
			return err
		}
	}
	dt := c.Float64(flagDt)
	if dt == 0 {
		dt = cfg.ImuDt
	}

	sit, err := loadSituation(c, logger)
	if err != nil {
		return err
	}

	f, err := ekf.NewFilter(cfg, ekf.WithLogger(logger.Named("ekf")))
	if err != nil {
		return err
	}

	var l *sim.EKFLogger
	if fn := c.String(flagLog); fn != "" {
		if l, err = sim.NewEKFLogger(fn); err != nil {
			return err
		}
	}

	sum, err := sim.Run(f, sit, sim.RunConfig{
		Dt:        dt,
		Duration:  c.Float64(flagDuration),
		TiltError: c.Float64(flagTiltError) * ekf.Deg,
		NoGating:  c.Bool(flagNoGating),
	}, l, logger)
	if l != nil {
		if cerr := l.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return err
	}

	roll, pitch, heading := f.CalcRollPitchHeading()
	droll, dpitch := f.CalcRollPitchUncertainty()
	fmt.Fprintf(c.App.Writer, "Samples: %d (fused %d, partial %d, gated %d)\n",
		sum.Samples, sum.Fused, sum.Partial, sum.Gated)
	fmt.Fprintf(c.App.Writer, "Final attitude: roll %.2f±%.2f°, pitch %.2f±%.2f°, heading %.1f°\n",
		roll, droll, pitch, dpitch, heading)
	fmt.Fprintf(c.App.Writer, "Final tilt error: %.3f°\n", sum.TiltError)
	return nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "gravsim",
		Usage: "simulate gravity fusion against a known attitude",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagScenario,
				Aliases: []string{"s"},
				Value:   "pitchup",
				Usage:   "scenario to use: level, pitchup, turn, or a recording `FILE`",
			},
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load filter configuration from JSON `FILE`",
			},
			&cli.Float64Flag{
				Name:  flagDuration,
				Usage: "seconds to run; 0 runs the whole scenario",
			},
			&cli.Float64Flag{
				Name:  flagDt,
				Usage: "seconds between simulated IMU samples; 0 uses imu_dt from the configuration; recordings replay at their own time stamps",
			},
			&cli.Float64Flag{
				Name:    flagAccelNoise,
				Aliases: []string{"a"},
				Usage:   "noise to add to accel measurements, m/s²",
			},
			&cli.StringFlag{
				Name:    flagAccelBias,
				Aliases: []string{"i"},
				Value:   "0,0,0",
				Usage:   "bias to add to accel measurements, \"x,y,z\" m/s²",
			},
			&cli.Float64Flag{
				Name:    flagGyroNoise,
				Aliases: []string{"g"},
				Usage:   "noise to add to gyro measurements, °/s",
			},
			&cli.Float64Flag{
				Name:  flagTiltError,
				Value: 5,
				Usage: "error added to the initial roll and pitch, °",
			},
			&cli.BoolFlag{
				Name:  flagNoGating,
				Usage: "fuse gravity even while the vehicle is accelerating",
			},
			&cli.Int64Flag{
				Name:  flagSeed,
				Value: 1,
				Usage: "random seed for the sensor noise",
			},
			&cli.StringFlag{
				Name:  flagLog,
				Usage: "write per-sample diagnostics to CSV `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
