package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/cjeanneret/RoverGo/internal/config"
	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/hw/gpio"
	"github.com/cjeanneret/RoverGo/internal/hw/motor"
	"github.com/cjeanneret/RoverGo/internal/hw/serialport"
	"github.com/cjeanneret/RoverGo/internal/hw/sonar"
	"github.com/cjeanneret/RoverGo/internal/logic/acquisition"
	"github.com/cjeanneret/RoverGo/internal/logic/command"
	"github.com/cjeanneret/RoverGo/internal/logic/drive"
	"github.com/cjeanneret/RoverGo/internal/logic/report"
	"github.com/cjeanneret/RoverGo/internal/logic/vehicle"
	"github.com/cjeanneret/RoverGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start telemetry web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	pingIntervalMs := flag.Int("ping_interval_ms", 0, "override per-sensor ping interval in ms (1-1000)")
	maxRangeCm := flag.Int("max_range_cm", 0, "override maximum sensing range in cm (1-400)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Validate CLI overrides (only non-zero values are applied; zero means "use config default")
	if err := validateCLIOverrides(*pingIntervalMs, *maxRangeCm); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	if err := applyOverrides(cfg, *pingIntervalMs, *maxRangeCm); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Ping interval", cfg.PingInterval())
	debug.Value("Max range (cm)", cfg.Acquisition.MaxRangeCm)
	debug.Value("Loop period", cfg.LoopPeriod())

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	// Open serial telemetry link
	debug.Step(2, "Opening serial telemetry link")
	serialPort, err := serialport.New(cfg.Defaults.MockSerial, cfg.Serial.Device, cfg.Serial.BaudRate)
	if err != nil {
		log.Fatalf("open serial failed: %v", err)
	}
	defer func() {
		if err := serialPort.Close(); err != nil {
			log.Printf("closing serial port failed: %v", err)
		}
	}()

	// Initialize ranging sensors
	debug.Step(3, "Initializing ranging sensors")
	rangers, err := newRangersFromConfig(gpioDriver, cfg)
	if err != nil {
		log.Fatalf("init sonar failed: %v", err)
	}

	// Build the per-cycle report: serial line, plus web broadcast when enabled
	reporter := report.New(serialPort, cfg.SeparatorByte())
	var broadcaster *web.TelemetryBroadcaster
	reportFn := func(r acquisition.Readings) {
		if err := reporter.Report(r); err != nil {
			debug.Error(err)
		}
		if broadcaster != nil {
			broadcaster.BroadcastReadings(r[acquisition.Front], r[acquisition.Left], r[acquisition.Right])
		}
	}

	debug.Step(4, "Creating acquisition scheduler")
	sched := acquisition.NewScheduler(rangers, cfg.PingInterval(), time.Now(), reportFn)

	// Initialize command buses and motors
	debug.Step(5, "Initializing command buses and motors")
	speedBus, err := command.NewBus(gpioDriver, cfg.SpeedBus.Bit2Pin, cfg.SpeedBus.Bit1Pin, cfg.SpeedBus.Bit0Pin)
	if err != nil {
		log.Fatalf("init speed bus failed: %v", err)
	}
	turnBus, err := command.NewBus(gpioDriver, cfg.TurnBus.Bit2Pin, cfg.TurnBus.Bit1Pin, cfg.TurnBus.Bit0Pin)
	if err != nil {
		log.Fatalf("init turn bus failed: %v", err)
	}
	speedMotor, err := motor.NewMotor(gpioDriver, motor.Config{
		PwmPin:     cfg.SpeedMotor.PwmPin,
		ForwardPin: cfg.SpeedMotor.ForwardPin,
		ReversePin: cfg.SpeedMotor.ReversePin,
	})
	if err != nil {
		log.Fatalf("init speed motor failed: %v", err)
	}
	debug.PrintStruct("Speed motor config", cfg.SpeedMotor)
	turnMotor, err := motor.NewMotor(gpioDriver, motor.Config{
		PwmPin:     cfg.TurnMotor.PwmPin,
		ForwardPin: cfg.TurnMotor.ForwardPin,
		ReversePin: cfg.TurnMotor.ReversePin,
	})
	if err != nil {
		log.Fatalf("init turn motor failed: %v", err)
	}
	debug.PrintStruct("Turn motor config", cfg.TurnMotor)

	driveCtrl := drive.NewController(speedMotor, turnMotor)
	veh := vehicle.New(sched, driveCtrl, speedBus, turnBus, cfg.LoopPeriod())

	// Optional telemetry web server alongside the control loop
	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster = web.NewTelemetryBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		info := web.InfoConfig{
			PingIntervalMs: cfg.Acquisition.PingIntervalMs,
			MaxRangeCm:     cfg.Acquisition.MaxRangeCm,
			Separator:      cfg.Serial.Separator,
		}
		srv := web.NewServer(webAddr, broadcaster, sched.Readings, info)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("web server: %v", err)
			}
		}()
	}

	if err := veh.Run(ctx); err != nil {
		log.Fatalf("control loop failed: %v", err)
	}
}

// newRangersFromConfig creates the three HC-SR04 drivers in sensor id order.
func newRangersFromConfig(g gpio.Driver, cfg *config.Config) ([acquisition.SensorCount]sonar.Ranger, error) {
	var rangers [acquisition.SensorCount]sonar.Ranger
	sonars := [acquisition.SensorCount]config.SonarConfig{
		acquisition.Front: cfg.FrontSonar,
		acquisition.Left:  cfg.LeftSonar,
		acquisition.Right: cfg.RightSonar,
	}
	for i, sc := range sonars {
		id := acquisition.SensorID(i)
		r, err := sonar.NewHCSR04(g, sonar.Config{
			Name:       id.String(),
			TriggerPin: sc.TriggerPin,
			EchoPin:    sc.EchoPin,
			MaxRangeCm: cfg.Acquisition.MaxRangeCm,
		})
		if err != nil {
			return rangers, fmt.Errorf("sensor %s: %w", id, err)
		}
		rangers[i] = r
	}
	return rangers, nil
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(pingIntervalMs, maxRangeCm int) error {
	if pingIntervalMs != 0 {
		if pingIntervalMs < 1 || pingIntervalMs > 1000 {
			return fmt.Errorf("ping_interval_ms must be between 1 and 1000, got %d", pingIntervalMs)
		}
	}
	if maxRangeCm != 0 {
		if maxRangeCm < 1 || maxRangeCm > 400 {
			return fmt.Errorf("max_range_cm must be between 1 and 400, got %d", maxRangeCm)
		}
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values
// are applied. The loop period must stay below the ping interval.
func applyOverrides(cfg *config.Config, pingIntervalMs, maxRangeCm int) error {
	if pingIntervalMs > 0 {
		cfg.Acquisition.PingIntervalMs = pingIntervalMs
	}
	if maxRangeCm > 0 {
		cfg.Acquisition.MaxRangeCm = maxRangeCm
	}
	if cfg.Defaults.LoopPeriodMs >= cfg.Acquisition.PingIntervalMs {
		return fmt.Errorf("loop_period_ms (%d) must be below ping_interval_ms (%d)",
			cfg.Defaults.LoopPeriodMs, cfg.Acquisition.PingIntervalMs)
	}
	return nil
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
