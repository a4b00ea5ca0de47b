// SPDX-License-Identifier: MPL-2.0

package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// SmokeURL is the page opened by Smoke.
const SmokeURL = "about:blank"

// Smoke launches the engine at enginePath headless, opens SmokeURL and
// shuts the engine down again. The flags match what a server in the image
// uses, so a passing smoke launch means the engine runs in that sandbox.
func Smoke(ctx context.Context, enginePath string) (err error) {
	l := newLauncher(ctx, enginePath)
	defer l.Cleanup()
	defer l.Kill()

	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch %s: %w", enginePath, err)
	}

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", enginePath, err)
	}
	defer func() {
		if cerr := b.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close browser: %w", cerr)
		}
	}()

	page, err := b.Page(proto.TargetCreateTarget{URL: SmokeURL})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", SmokeURL, err)
	}
	return page.Close()
}

// newLauncher configures the headless launch flags.
func newLauncher(ctx context.Context, enginePath string) *launcher.Launcher {
	return launcher.New().
		Context(ctx).
		Bin(enginePath).
		Leakless(false).
		Headless(false).
		Set(flags.Headless, "new").
		NoSandbox(true).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("window-size", "1920,1080").
		Set("disable-blink-features", "AutomationControlled")
}
