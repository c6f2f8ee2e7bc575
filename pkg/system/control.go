package system

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Controller drives device-level controls.
type Controller interface {
	Shutdown(ctx context.Context) error
	Restart(ctx context.Context) error
	Brightness(ctx context.Context) (int, error)
	SetBrightness(ctx context.Context, percent int) error
	SetMuted(ctx context.Context, muted bool) error
}

// BrightnessStep is the change applied by one increase or decrease command.
const BrightnessStep = 10

// StateController keeps device state in process and logs every action.
// Power actions are recorded, never executed.
type StateController struct {
	logger zerolog.Logger

	mu         sync.Mutex
	brightness int
	muted      bool
	power      []string
}

// NewStateController creates a controller at the given brightness.
func NewStateController(logger zerolog.Logger, brightness int) *StateController {
	return &StateController{logger: logger, brightness: clamp(brightness)}
}

// Shutdown implements Controller.
func (c *StateController) Shutdown(ctx context.Context) error {
	return c.recordPower(ctx, "shutdown")
}

// Restart implements Controller.
func (c *StateController) Restart(ctx context.Context) error {
	return c.recordPower(ctx, "restart")
}

func (c *StateController) recordPower(ctx context.Context, action string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.power = append(c.power, action)
	c.mu.Unlock()
	c.logger.Warn().Str("action", action).Msg("power action requested")
	return nil
}

// Brightness implements Controller.
func (c *StateController) Brightness(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.brightness, nil
}

// SetBrightness implements Controller.
func (c *StateController) SetBrightness(ctx context.Context, percent int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.brightness = clamp(percent)
	c.mu.Unlock()
	c.logger.Info().Int("brightness", percent).Msg("brightness set")
	return nil
}

// SetMuted implements Controller.
func (c *StateController) SetMuted(ctx context.Context, muted bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
	c.logger.Info().Bool("muted", muted).Msg("mute set")
	return nil
}

// Muted reports the current mute state.
func (c *StateController) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// PowerActions returns the power actions requested so far.
func (c *StateController) PowerActions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.power...)
}

// Execute runs the device command named in text and returns the user-facing
// result. Unknown commands are not an error.
func Execute(ctx context.Context, c Controller, text string) (string, error) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "shut down") || strings.Contains(lower, "shutdown") || strings.Contains(lower, "turn off"):
		if err := c.Shutdown(ctx); err != nil {
			return "", err
		}
		return "Shutting down the computer...", nil
	case strings.Contains(lower, "restart") || strings.Contains(lower, "reboot"):
		if err := c.Restart(ctx); err != nil {
			return "", err
		}
		return "Restarting the computer...", nil
	case strings.Contains(lower, "increase brightness"):
		level, err := stepBrightness(ctx, c, BrightnessStep)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Increased brightness to %d%%", level), nil
	case strings.Contains(lower, "decrease brightness"):
		level, err := stepBrightness(ctx, c, -BrightnessStep)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Decreased brightness to %d%%", level), nil
	case strings.Contains(lower, "unmute"):
		if err := c.SetMuted(ctx, false); err != nil {
			return "", err
		}
		return "Sound unmuted.", nil
	case strings.Contains(lower, "mute"):
		if err := c.SetMuted(ctx, true); err != nil {
			return "", err
		}
		return "Sound muted.", nil
	default:
		return "System command not recognized.", nil
	}
}

func stepBrightness(ctx context.Context, c Controller, delta int) (int, error) {
	current, err := c.Brightness(ctx)
	if err != nil {
		return 0, err
	}
	level := clamp(current + delta)
	if err := c.SetBrightness(ctx, level); err != nil {
		return 0, err
	}
	return level, nil
}

func clamp(percent int) int {
	return max(0, min(100, percent))
}
