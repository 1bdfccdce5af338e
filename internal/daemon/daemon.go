// Package daemon wires the injection pipeline together. It loads the
// configuration, prepares the virtual output devices, opens the configured
// input devices and runs one event reader per device. When a preset file
// changes on disk the daemon tears the readers down and starts over with
// the new mappings.
package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonasBoss/key-mapper/internal/app"
	"github.com/jonasBoss/key-mapper/internal/config"
	"github.com/jonasBoss/key-mapper/internal/device"
	"github.com/jonasBoss/key-mapper/internal/injection"
	"github.com/jonasBoss/key-mapper/internal/mapping"
	"github.com/jonasBoss/key-mapper/internal/output"
)

// Options configures daemon creation.
type Options struct {
	// ConfigPath points at the daemon configuration file. Empty means
	// built-in defaults.
	ConfigPath string

	// LogLevel overrides the configured log level when non-empty.
	LogLevel string

	// Opener creates the virtual output devices. Defaults to the uinput
	// opener; tests supply a memory-backed one.
	Opener output.Opener
}

// capture is one grabbed input device with its forward device, its
// compiled handler context and the reader pumping events between them.
type capture struct {
	source  *device.EvdevDevice
	forward output.Device
	ictx    *injection.Context
	reader  *injection.EventReader
	preset  string
}

// Daemon is the central coordinator. It owns the output registry and the
// per-device injection state, and restarts injection on preset changes.
type Daemon struct {
	cfg      config.Config
	log      *app.Logger
	opener   output.Opener
	registry *output.Registry

	mu       sync.Mutex
	cancel   context.CancelFunc
	captures []*capture
	wg       sync.WaitGroup

	running atomic.Bool
}

// New loads the configuration and initializes the shared components.
// Injection does not start until Run is called.
func New(opts Options) (*Daemon, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	logCfg := app.DefaultLoggerConfig()
	logCfg.Level = app.ParseLogLevel(cfg.LogLevel)
	log := app.NewLogger(logCfg)

	opener := opts.Opener
	if opener == nil {
		opener = output.DefaultOpener()
	}

	d := &Daemon{
		cfg:    cfg,
		log:    log.WithComponent("daemon"),
		opener: opener,
	}
	if err := d.bootstrap(); err != nil {
		return nil, err
	}
	return d, nil
}

// bootstrap initializes components in dependency order.
func (d *Daemon) bootstrap() error {
	// 1. Virtual output devices. Everything downstream writes through
	// the registry, so it has to exist before any handler runs.
	d.registry = output.NewRegistry(d.log)
	if err := d.registry.Prepare(d.opener); err != nil {
		return fmt.Errorf("preparing output devices: %w", err)
	}
	return nil
}

// Run starts injection for every configured device and blocks until ctx
// is cancelled. A preset watcher restarts injection when a preset file
// under the preset directory is written.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return fmt.Errorf("daemon already running")
	}
	defer d.running.Store(false)

	if err := d.start(ctx); err != nil {
		d.registry.Close()
		return err
	}

	watcher, err := config.NewPresetWatcher(d.cfg.PresetDir, func(path string) {
		d.reload(ctx, path)
	}, d.log)
	if err != nil {
		d.log.Warn("preset watcher unavailable, live reload disabled: %v", err)
	} else {
		go watcher.Run(ctx)
		defer watcher.Close()
	}

	<-ctx.Done()
	d.stop()
	d.registry.Close()
	return nil
}

// IsRunning reports whether Run is active.
func (d *Daemon) IsRunning() bool { return d.running.Load() }

// Registry exposes the virtual output devices.
func (d *Daemon) Registry() *output.Registry { return d.registry }

// Config returns the effective configuration.
func (d *Daemon) Config() config.Config { return d.cfg }

// start opens every configured device and spawns its reader. Devices that
// cannot be opened are skipped; start fails only when none could.
func (d *Daemon) start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.cfg.Devices) == 0 {
		return fmt.Errorf("no input devices configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for _, devCfg := range d.cfg.Devices {
		c, err := d.openCapture(devCfg)
		if err != nil {
			d.log.Error("skipping device %q: %v", devCfg.Name, err)
			continue
		}
		d.captures = append(d.captures, c)
		d.wg.Add(1)
		go func(c *capture) {
			defer d.wg.Done()
			c.reader.Run(runCtx)
		}(c)
		d.log.Info("injecting for %q with preset %q", c.source.Name(), c.preset)
	}

	if len(d.captures) == 0 {
		cancel()
		d.cancel = nil
		return fmt.Errorf("none of the configured devices could be opened")
	}
	return nil
}

// openCapture grabs one input device, compiles its preset and creates a
// forward device mirroring the source capabilities for unmapped events.
func (d *Daemon) openCapture(devCfg config.DeviceConfig) (*capture, error) {
	presetName := d.cfg.PresetFor(devCfg.Name)
	if presetName == "" {
		return nil, fmt.Errorf("no preset configured")
	}

	preset, err := d.loadPreset(d.cfg.PresetPath(presetName))
	if err != nil {
		return nil, err
	}

	ictx, err := injection.NewContext(preset, d.registry, d.log)
	if err != nil {
		return nil, fmt.Errorf("building handlers: %w", err)
	}
	d.log.Debug("compiled %d mappings from preset %q", len(ictx.Preset().Mappings), presetName)

	source, err := device.FindByName(devCfg.Name)
	if err != nil {
		return nil, err
	}
	if err := source.Grab(); err != nil {
		source.Close()
		return nil, err
	}

	forward, err := d.opener("key-mapper "+source.Name()+" forwarded", source.Capabilities())
	if err != nil {
		source.Close()
		return nil, fmt.Errorf("creating forward device: %w", err)
	}

	reader := injection.NewEventReader(ictx, source, forward, d.log)
	return &capture{
		source:  source,
		forward: forward,
		ictx:    ictx,
		reader:  reader,
		preset:  presetName,
	}, nil
}

func (d *Daemon) loadPreset(path string) (*mapping.Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading preset: %w", err)
	}

	base := mapping.New()
	if d.cfg.MacroPacingMs > 0 {
		base.Pacing = time.Duration(d.cfg.MacroPacingMs) * time.Millisecond
	}
	return mapping.ParsePresetWith(data, base)
}

// stop cancels the readers, waits for them and releases the devices.
// Held keys are released on the virtual devices before closing.
func (d *Daemon) stop() {
	d.mu.Lock()
	cancel := d.cancel
	captures := d.captures
	d.cancel = nil
	d.captures = nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	d.wg.Wait()

	for _, c := range captures {
		c.ictx.Reset()
		if err := c.source.Close(); err != nil {
			d.log.Error("closing input device %q: %v", c.source.Name(), err)
		}
		if err := c.forward.Close(); err != nil {
			d.log.Error("closing forward device %q: %v", c.forward.Name(), err)
		}
	}
}

// reload restarts injection after a preset file changed on disk.
func (d *Daemon) reload(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	d.log.Info("preset %q changed, restarting injection", filepath.Base(path))
	d.stop()
	if err := d.start(ctx); err != nil {
		d.log.Error("restarting injection: %v", err)
	}
}
