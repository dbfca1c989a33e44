package gpucore

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/vkngwrapper/gpucore/internal/memory"
)

// PresentMode selects how a window's swapchain presents images.
type PresentMode int

const (
	// PresentFIFO waits for vertical blank and is always available.
	PresentFIFO PresentMode = iota
	// PresentMailbox replaces the queued image; falls back to FIFO.
	PresentMailbox
	// PresentImmediate does not wait; falls back to FIFO.
	PresentImmediate
)

var presentModeNames = map[string]PresentMode{
	"fifo":      PresentFIFO,
	"mailbox":   PresentMailbox,
	"immediate": PresentImmediate,
}

// Config holds the settings a Core is created with.
type Config struct {
	ApplicationName string
	// Validation enables the Khronos validation layer and routes its
	// messages to the logger.
	Validation bool
	LogLevel   logrus.Level
	// InlineUpdateLimit is the largest initial buffer content uploaded
	// inline. It is clamped to the native limit of 65536 bytes; 0 or less
	// disables inline uploads.
	InlineUpdateLimit int
	// SwapchainImages is the requested backbuffer count; 0 asks for one
	// more than the surface minimum.
	SwapchainImages int
	PresentMode     PresentMode
	// DeviceIndex picks a physical device by enumeration order; -1 prefers
	// the first discrete GPU.
	DeviceIndex int
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		ApplicationName:   "gpucore",
		Validation:        false,
		LogLevel:          logrus.InfoLevel,
		InlineUpdateLimit: memory.DefaultInlineLimit,
		SwapchainImages:   0,
		PresentMode:       PresentFIFO,
		DeviceIndex:       -1,
	}
}

const envPrefix = "GPUCORE_"

// ConfigFromEnv starts from DefaultConfig and applies GPUCORE_* variables.
// Named dotenv files are read first; variables already present in the
// environment win over values from the files.
func ConfigFromEnv(files ...string) (Config, error) {
	config := DefaultConfig()

	if len(files) > 0 {
		values, err := godotenv.Read(files...)
		if err != nil {
			return config, errors.Wrap(err, "reading env files")
		}
		for key, value := range values {
			if current, err := envy.MustGet(key); err != nil || current == "" {
				envy.Set(key, value)
			}
		}
	}

	config.ApplicationName = envy.Get(envPrefix+"APP_NAME", config.ApplicationName)

	var err error
	if config.Validation, err = envBool("VALIDATION", config.Validation); err != nil {
		return config, err
	}
	if config.InlineUpdateLimit, err = envInt("INLINE_UPDATE_LIMIT", config.InlineUpdateLimit); err != nil {
		return config, err
	}
	if config.SwapchainImages, err = envInt("SWAPCHAIN_IMAGES", config.SwapchainImages); err != nil {
		return config, err
	}
	if config.DeviceIndex, err = envInt("DEVICE", config.DeviceIndex); err != nil {
		return config, err
	}

	if level := envy.Get(envPrefix+"LOG_LEVEL", ""); level != "" {
		config.LogLevel, err = logrus.ParseLevel(level)
		if err != nil {
			return config, errors.Wrapf(err, "%sLOG_LEVEL", envPrefix)
		}
	}

	if mode := envy.Get(envPrefix+"PRESENT_MODE", ""); mode != "" {
		presentMode, ok := presentModeNames[strings.ToLower(mode)]
		if !ok {
			return config, errors.Newf("%sPRESENT_MODE: unknown present mode %q", envPrefix, mode)
		}
		config.PresentMode = presentMode
	}

	return config, nil
}

func envBool(name string, fallback bool) (bool, error) {
	raw := envy.Get(envPrefix+name, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback, errors.Wrapf(err, "%s%s", envPrefix, name)
	}
	return value, nil
}

func envInt(name string, fallback int) (int, error) {
	raw := envy.Get(envPrefix+name, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, errors.Wrapf(err, "%s%s", envPrefix, name)
	}
	return value, nil
}
