// Command hallwheelfw boots the two-wheel Hall-encoder controller: it
// loads configuration, wires the hardware abstraction layer to the
// capture/calibrator/estimator/pid/motorpwm stack for each wheel,
// composes a DifferentialDrive over both, and runs the fixed-cadence
// control loop.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/fidistudio/hallwheel/internal/calibrator"
	"github.com/fidistudio/hallwheel/internal/capture"
	"github.com/fidistudio/hallwheel/internal/drive"
	"github.com/fidistudio/hallwheel/internal/estimator"
	"github.com/fidistudio/hallwheel/internal/hal"
	"github.com/fidistudio/hallwheel/internal/motorpwm"
	"github.com/fidistudio/hallwheel/internal/pid"
	"github.com/fidistudio/hallwheel/internal/wheel"
	"github.com/fidistudio/hallwheel/pkg/config"
	"github.com/fidistudio/hallwheel/pkg/logger"
)

// controlRateHz is the cooperative control task's fixed cadence.
const controlRateHz = 100

// platform groups every hardware resource newPlatform hands back,
// independent of which build-tag backend produced it.
type platform struct {
	leftEncoder  hal.Pin
	rightEncoder hal.Pin
	leftMotorA   hal.Pin
	leftMotorB   hal.Pin
	rightMotorA  hal.Pin
	rightMotorB  hal.Pin
	pwm          hal.PWMDevice
	store        hal.Store
	clock        hal.Clock
}

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file (defaults built in if omitted)")
	flag.Parse()

	log := logger.New(os.Stderr)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("load config")
		}
		cfg = loaded
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("run")
	}
}

func run(cfg config.Root, log zerolog.Logger) error {
	plat, err := newPlatform(log)
	if err != nil {
		return fmt.Errorf("platform: %w", err)
	}
	if err := plat.pwm.Configure(uint32(cfg.Left.Motor.FreqHz)); err != nil {
		return fmt.Errorf("pwm configure: %w", err)
	}

	right, rightCalib, err := buildWheel(cfg.Right, "wheelR", plat.rightEncoder, plat.rightMotorA, plat.rightMotorB, plat, log.With().Str("wheel", "right").Logger())
	if err != nil {
		return fmt.Errorf("build right wheel: %w", err)
	}
	left, leftCalib, err := buildWheel(cfg.Left, "wheelL", plat.leftEncoder, plat.leftMotorA, plat.leftMotorB, plat, log.With().Str("wheel", "left").Logger())
	if err != nil {
		return fmt.Errorf("build left wheel: %w", err)
	}

	driveCfg := drive.Config{
		WheelRadius:                cfg.Drive.WheelRadius,
		TrackWidth:                 cfg.Drive.TrackWidth,
		VMax:                       cfg.Drive.VMax,
		WMax:                       cfg.Drive.WMax,
		VAccMax:                    cfg.Drive.VAccMax,
		WAccMax:                    cfg.Drive.WAccMax,
		OmegaWheelMax:              cfg.Drive.OmegaWheelMax,
		RescaleToWheelLimit:        cfg.Drive.RescaleTwistToWheelLimit,
		AutoCoordinatedAlignOnBoot: cfg.Drive.AutoCoordinatedAlignOnBoot,
		AlignLapsBoot:              cfg.Drive.AlignLapsBoot,
		AlignAssistW:               cfg.Drive.AlignAssistW,
		CalibAssistW:               cfg.Drive.CalibAssistW,
	}
	base := drive.New(driveCfg, right, left, rightCalib, leftCalib, log)

	if err := base.BeginBoot(); err != nil {
		log.Warn().Err(err).Msg("coordinated boot alignment did not start")
	}

	ticker := time.NewTicker(time.Second / controlRateHz)
	defer ticker.Stop()

	dt := float32(1) / controlRateHz
	for range ticker.C {
		if err := base.Update(dt); err != nil {
			log.Error().Err(err).Msg("drive update")
		}
		now := plat.clock.NowMicros()
		if err := right.Update(now, dt); err != nil {
			log.Error().Err(err).Msg("right wheel update")
		}
		if err := left.Update(now, dt); err != nil {
			log.Error().Err(err).Msg("left wheel update")
		}
	}
	return nil
}

// buildWheel wires one wheel's full stack: pulse capture armed on the
// encoder pin's interrupt, the sector calibrator loaded from the
// store, the velocity estimator, the configured PID variant, and PWM
// motor actuation, composed into a wheel.Wheel.
func buildWheel(cfg config.Wheel, namespace string, encoderPin, motorA, motorB hal.Pin, plat *platform, log zerolog.Logger) (*wheel.Wheel, *calibrator.Calibrator, error) {
	cap := capture.New(cfg.Capture.MinGapUs)

	change := hal.PinFalling
	if cfg.Capture.CountRising {
		change = hal.PinRising
	}
	if err := encoderPin.SetInterrupt(change, func(hal.Pin) {
		cap.Accept(plat.clock.NowMicros())
	}); err != nil {
		return nil, nil, fmt.Errorf("%s: arm encoder interrupt: %w", namespace, err)
	}

	calib, err := calibrator.New(cfg.Capture.PPR, cfg.Calibrator.MaxLaps, plat.store, namespace, log)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: new calibrator: %w", namespace, err)
	}
	if err := calib.Load(); err != nil {
		return nil, nil, fmt.Errorf("%s: load calibration: %w", namespace, err)
	}
	if useFwd, useRev := calib.UseFlags(); !useFwd && !useRev && cfg.Calibrator.UseLUTByDefault {
		if err := calib.SetUseFlags(true, true); err != nil {
			return nil, nil, fmt.Errorf("%s: set default use flags: %w", namespace, err)
		}
	}

	est := estimator.New(estimator.Config{
		PPR:           cfg.Capture.PPR,
		AlphaPeriod:   cfg.Estimator.AlphaPeriod,
		TimeoutStopUs: cfg.Estimator.TimeoutStopMs * 1000,
		Invert:        cfg.Estimator.Invert,
	}, cap, calib, log)

	pidCtl, err := buildPID(cfg.PID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: pid: %w", namespace, err)
	}

	motor, err := buildMotor(cfg.Motor, motorA, motorB, plat.pwm)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: motor: %w", namespace, err)
	}

	w := wheel.New(wheel.Config{
		DirEpsU:    cfg.Behavior.DirEpsU,
		DirHoldMs:  cfg.Behavior.DirHoldMs,
		AssistU:    cfg.Behavior.AssistU,
		AssistMode: true,
	}, est, calib, pidCtl, motor, log)

	if err := w.BeginBoot(cfg.Behavior.AutoAlignOnBoot, cfg.Behavior.AlignLapsBoot); err != nil {
		log.Warn().Err(err).Msg("boot auto-alignment did not start")
	}

	return w, calib, nil
}

func buildPID(cfg config.PID) (pid.Controller, error) {
	switch cfg.Discretization {
	case "", "incremental":
		return pid.NewIncremental(cfg.Kp, cfg.Ki, cfg.Kd, cfg.Ts, cfg.UMin, cfg.UMax, cfg.Clamp), nil
	case "parallel":
		return pid.NewParallel(cfg.Kp, cfg.Ki, cfg.Kd, cfg.Tf, cfg.Ts, cfg.UMin, cfg.UMax), nil
	default:
		return nil, fmt.Errorf("unknown pid discretization %q", cfg.Discretization)
	}
}

func buildMotor(cfg config.Motor, pinA, pinB hal.Pin, pwmDevice hal.PWMDevice) (*motorpwm.MotorPwm, error) {
	chA, err := pwmDevice.Channel(pinA)
	if err != nil {
		return nil, fmt.Errorf("channel A: %w", err)
	}
	chB, err := pwmDevice.Channel(pinB)
	if err != nil {
		return nil, fmt.Errorf("channel B: %w", err)
	}

	driveMode, err := motorpwm.ParseDriveMode(cfg.DriveMode)
	if err != nil {
		return nil, err
	}
	neutralMode, err := motorpwm.ParseNeutralMode(cfg.NeutralMode)
	if err != nil {
		return nil, err
	}

	return motorpwm.New(chA, chB, motorpwm.Config{
		ResolutionBits: cfg.ResolutionBits,
		Deadband:       cfg.Deadband,
		MinOutput:      cfg.MinOutput,
		SlewRatePerSec: cfg.SlewRatePerSec,
		Drive:          driveMode,
		Neutral:        neutralMode,
		Invert:         cfg.Invert,
	}), nil
}
