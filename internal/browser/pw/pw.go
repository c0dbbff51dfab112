// Package pw binds the browser.Driver capability surface to a real Chromium
// page through playwright-go. Driver errors are mapped onto the engine's
// fault taxonomy by message inspection, the only signal playwright exposes.
package pw

import (
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/eogh234/srt-reservation/internal/browser"
)

const defaultTimeout = 10 * time.Second

type Options struct {
	Headless bool
	// Timeout bounds every locator call; zero means 10s.
	Timeout time.Duration
}

type Driver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	timeout float64 // milliseconds, the unit playwright speaks

	// dialogs buffers alert/confirm popups until the engine asks about
	// them; overflow is dismissed so the page never deadlocks.
	dialogs chan playwright.Dialog
}

// Launch starts Chromium and opens the page the session will own. Callers
// must Close the driver; each booking session gets its own instance.
func Launch(opts Options) (*Driver, error) {
	run, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	b, err := run.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		run.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	page, err := b.NewPage()
	if err != nil {
		b.Close()
		run.Stop()
		return nil, fmt.Errorf("open page: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	d := &Driver{
		pw:      run,
		browser: b,
		page:    page,
		timeout: float64(timeout.Milliseconds()),
		dialogs: make(chan playwright.Dialog, 4),
	}

	page.OnDialog(func(dialog playwright.Dialog) {
		select {
		case d.dialogs <- dialog:
		default:
			dialog.Dismiss()
		}
	})

	return d, nil
}

func (d *Driver) Navigate(url string) error {
	if _, err := d.page.Goto(url); err != nil {
		return d.classify("navigate", err)
	}
	return nil
}

func (d *Driver) Fill(selector, text string) error {
	loc := d.page.Locator(selector)
	if err := loc.Clear(playwright.LocatorClearOptions{Timeout: playwright.Float(d.timeout)}); err != nil {
		return d.classify("fill", err)
	}
	if err := loc.Fill(text, playwright.LocatorFillOptions{Timeout: playwright.Float(d.timeout)}); err != nil {
		return d.classify("fill", err)
	}
	return nil
}

func (d *Driver) SelectOption(selector, value string) error {
	_, err := d.page.Locator(selector).SelectOption(
		playwright.SelectOptionValues{Values: playwright.StringSlice(value)},
		playwright.LocatorSelectOptionOptions{Timeout: playwright.Float(d.timeout)},
	)
	if err != nil {
		return d.classify("select option", err)
	}
	return nil
}

func (d *Driver) Click(selector string) error {
	err := d.page.Locator(selector).Click(playwright.LocatorClickOptions{Timeout: playwright.Float(d.timeout)})
	if err != nil {
		return d.classify("click", err)
	}
	return nil
}

func (d *Driver) PressEnter(selector string) error {
	err := d.page.Locator(selector).Press("Enter", playwright.LocatorPressOptions{Timeout: playwright.Float(d.timeout)})
	if err != nil {
		return d.classify("press enter", err)
	}
	return nil
}

func (d *Driver) ReadText(selector string) (string, error) {
	text, err := d.page.Locator(selector).TextContent(playwright.LocatorTextContentOptions{Timeout: playwright.Float(d.timeout)})
	if err != nil {
		return "", d.classify("read text", err)
	}
	return strings.TrimSpace(text), nil
}

func (d *Driver) ReadAttribute(selector, name string) (string, error) {
	value, err := d.page.Locator(selector).GetAttribute(name, playwright.LocatorGetAttributeOptions{Timeout: playwright.Float(d.timeout)})
	if err != nil {
		return "", d.classify("read attribute", err)
	}
	return strings.TrimSpace(value), nil
}

func (d *Driver) AcceptModalIfPresent() (bool, error) {
	select {
	case dlg := <-d.dialogs:
		if err := dlg.Accept(); err != nil {
			return true, browser.NewUIError(browser.UnexpectedModal, "accept modal", err)
		}
		return true, nil
	default:
		return false, nil
	}
}

func (d *Driver) DismissModalIfPresent() (bool, error) {
	select {
	case dlg := <-d.dialogs:
		if err := dlg.Dismiss(); err != nil {
			return true, browser.NewUIError(browser.UnexpectedModal, "dismiss modal", err)
		}
		return true, nil
	default:
		return false, nil
	}
}

func (d *Driver) Back() error {
	if _, err := d.page.GoBack(); err != nil {
		return d.classify("back", err)
	}
	return nil
}

func (d *Driver) Close() error {
	err := d.browser.Close()
	d.pw.Stop()
	return err
}

func (d *Driver) classify(op string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "has been closed") || strings.Contains(msg, "target closed") || strings.Contains(msg, "browser closed"):
		return browser.NewUIError(browser.DriverUnavailable, op, err)
	case strings.Contains(msg, "intercepts pointer events"):
		return browser.NewUIError(browser.ClickIntercepted, op, err)
	case strings.Contains(msg, "not attached") || strings.Contains(msg, "stale"):
		return browser.NewUIError(browser.StaleElement, op, err)
	default:
		// timeouts, detached frames and everything else a refresh can fix
		return browser.NewUIError(browser.ElementMissing, op, err)
	}
}
