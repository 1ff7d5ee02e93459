package loader_test

import (
	"errors"
	"testing"

	"recon-engine/core/loader"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

type fakeFeature struct {
	name    string
	enabled bool
	loadErr error
	loaded  bool
}

func (f *fakeFeature) Name() string    { return f.name }
func (f *fakeFeature) IsEnabled() bool { return f.enabled }
func (f *fakeFeature) Load(app fiber.Router) error {
	f.loaded = true
	return f.loadErr
}

func TestLoadAll(t *testing.T) {
	t.Run("LoadsEnabledSkipsDisabled", func(t *testing.T) {
		enabled := &fakeFeature{name: "jobs", enabled: true}
		disabled := &fakeFeature{name: "archive", enabled: false}

		mgr := loader.NewManager()
		mgr.Register(enabled)
		mgr.Register(disabled)

		err := mgr.LoadAll(fiber.New())
		assert.NoError(t, err)
		assert.True(t, enabled.loaded)
		assert.False(t, disabled.loaded)
	})

	t.Run("StopsOnFirstFailure", func(t *testing.T) {
		failing := &fakeFeature{name: "jobs", enabled: true, loadErr: errors.New("boom")}
		after := &fakeFeature{name: "archive", enabled: true}

		mgr := loader.NewManager()
		mgr.Register(failing)
		mgr.Register(after)

		err := mgr.LoadAll(fiber.New())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "jobs")
		assert.False(t, after.loaded)
	})
}
