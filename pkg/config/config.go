// Package config loads the flat YAML configuration for the two-wheel
// controller: one section per wheel (capture, estimator, motor, PID,
// wheel behavior, calibrator) plus the shared drive section.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Root is the top-level configuration document.
type Root struct {
	Left  Wheel `yaml:"left"`
	Right Wheel `yaml:"right"`
	Drive Drive `yaml:"drive"`
}

// Wheel groups every per-wheel configuration section.
type Wheel struct {
	Capture    Capture    `yaml:"capture"`
	Estimator  Estimator  `yaml:"estimator"`
	Motor      Motor      `yaml:"motor"`
	PID        PID        `yaml:"pid"`
	Behavior   Behavior   `yaml:"wheel"`
	Calibrator Calibrator `yaml:"calibrator"`
}

// Capture configures the pulse-capture peripheral.
type Capture struct {
	PPR int `yaml:"ppr"`
	// CountRising selects which edge the hardware peripheral counts;
	// forwarded to the HAL pin interrupt configuration.
	CountRising bool `yaml:"countRising"`
	// GlitchCycles configures the hardware glitch filter width. It is
	// a peripheral-register concern with no equivalent on the Linux
	// sysfs or in-memory fake backends; no platform backend in this tree,
	// the tinygo one included, applies it.
	GlitchCycles int   `yaml:"glitchCycles"`
	MinGapUs     int64 `yaml:"minGapUs"`
}

// Estimator configures the velocity estimator.
type Estimator struct {
	AlphaPeriod   float32 `yaml:"alphaPeriod"`
	TimeoutStopMs int64   `yaml:"timeoutStopMs"`
	Invert        bool    `yaml:"invert"`
}

// Motor configures PWM actuation.
type Motor struct {
	FreqHz         int     `yaml:"freqHz"`
	ResolutionBits uint8   `yaml:"resolutionBits"`
	Deadband       float32 `yaml:"deadband"`
	MinOutput      float32 `yaml:"minOutput"`
	SlewRatePerSec float32 `yaml:"slewRatePerSec"`
	NeutralMode    string  `yaml:"neutralMode"` // "coast" | "brake"
	DriveMode      string  `yaml:"driveMode"`   // "signMagnitude" | "lockedAntiPhase"
	Invert         bool    `yaml:"invert"`
}

// PID configures the magnitude controller.
type PID struct {
	Kp    float32 `yaml:"kp"`
	Ki    float32 `yaml:"ki"`
	Kd    float32 `yaml:"kd"`
	Tf    float32 `yaml:"tf"` // only used by the "parallel" discretization
	Ts    float32 `yaml:"ts"`
	UMin  float32 `yaml:"uMin"`
	UMax  float32 `yaml:"uMax"`
	Clamp bool    `yaml:"clamp"`
	// Discretization selects the controller variant: "incremental"
	// (velocity-form, closed-form coefficients) or "parallel"
	// (derivative-on-measurement PIDF with trapezoidal integration).
	Discretization string `yaml:"discretization"`
}

// Behavior configures the wheel-level routine/hysteresis behavior.
type Behavior struct {
	AssistU         float32 `yaml:"assistU"`
	DirEpsU         float32 `yaml:"dirEpsU"`
	DirHoldMs       int64   `yaml:"dirHoldMs"`
	AutoAlignOnBoot bool    `yaml:"autoAlignOnBoot"`
	AlignLapsBoot   int     `yaml:"alignLapsBoot"`
}

// Calibrator configures the sector LUT calibrator.
type Calibrator struct {
	MaxLaps         int  `yaml:"maxLaps"`
	UseLUTByDefault bool `yaml:"useLUTByDefault"`
}

// Drive configures the differential-drive coordinator.
type Drive struct {
	WheelRadius                float32 `yaml:"wheelRadius"`
	TrackWidth                 float32 `yaml:"trackWidth"`
	VMax                       float32 `yaml:"vMax"`
	WMax                       float32 `yaml:"wMax"`
	VAccMax                    float32 `yaml:"vAccMax"`
	WAccMax                    float32 `yaml:"wAccMax"`
	OmegaWheelMax              float32 `yaml:"omegaWheelMax"`
	RescaleTwistToWheelLimit   bool    `yaml:"rescaleTwistToWheelLimit"`
	AutoCoordinatedAlignOnBoot bool    `yaml:"autoCoordinatedAlignOnBoot"`
	AlignLapsBoot              int     `yaml:"alignLapsBoot"`
	AlignAssistW               float32 `yaml:"alignAssistW"`
	CalibAssistW               float32 `yaml:"calibAssistW"`
}

// Default returns a Root with sensible defaults: 20 tick
// PPR, 20kHz/8-bit PWM, sign-magnitude drive, coast neutral, a
// conservative incremental PID, and a 2s stall timeout.
func Default() Root {
	wheel := Wheel{
		Capture: Capture{PPR: 20, CountRising: true, MinGapUs: 200},
		Estimator: Estimator{
			AlphaPeriod:   0.2,
			TimeoutStopMs: 2000,
		},
		Motor: Motor{
			FreqHz:         20000,
			ResolutionBits: 8,
			Deadband:       0.05,
			MinOutput:      0.15,
			SlewRatePerSec: 4.0,
			NeutralMode:    "coast",
			DriveMode:      "signMagnitude",
		},
		PID: PID{
			Kp: 0.6, Ki: 1.5, Kd: 0,
			Ts: 0.01, UMin: 0, UMax: 1,
			Clamp:          true,
			Discretization: "incremental",
		},
		Behavior: Behavior{
			AssistU:       0.3,
			DirEpsU:       0.05,
			DirHoldMs:     150,
			AlignLapsBoot: 2,
		},
		Calibrator: Calibrator{MaxLaps: 5},
	}
	return Root{
		Left:  wheel,
		Right: wheel,
		Drive: Drive{
			WheelRadius:   0.05,
			TrackWidth:    0.2,
			VMax:          1.0,
			WMax:          4.0,
			VAccMax:       2.0,
			WAccMax:       8.0,
			OmegaWheelMax: 20.0,
			AlignLapsBoot: 2,
			AlignAssistW:  0.6,
			CalibAssistW:  0.6,
		},
	}
}

// Load reads and parses path as YAML into a Root, seeded with
// Default() so missing sections retain their defaults.
func Load(path string) (Root, error) {
	root := Default()
	f, err := os.Open(path)
	if err != nil {
		return Root{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&root); err != nil {
		return Root{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return root, nil
}
