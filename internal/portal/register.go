package portal

import (
	"context"
	"errors"
	"fmt"
	"github.com/DanielTromp/bezoekersparkeren/internal/parking"
	"github.com/DanielTromp/bezoekersparkeren/internal/registrar"
	"github.com/chromedp/chromedp"
	"strings"
	"time"
)

// SubmitRegistration walks the portal's new-registration flow: open the form,
// enter the plate, confirm it, set the start/end fields and start the action.
func (p *Portal) SubmitRegistration(ctx context.Context, registration registrar.Registration) error {
	err := p.submitRegistration(ctx, registration)
	if err != nil {
		submissionCounter.WithLabelValues("register", "error").Inc()
		return fmt.Errorf("portal: register %s: %w", registration.Plate, err)
	}
	submissionCounter.WithLabelValues("register", "ok").Inc()
	return nil
}

func (p *Portal) submitRegistration(ctx context.Context, registration registrar.Registration) error {
	if err := p.run(ctx,
		chromedp.Navigate(p.url("/app/park/new")),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return err
	}

	// the portal sometimes offers to resume a previous action
	p.dismissResumeDialog(ctx)

	if err := p.openRegistrationForm(ctx); err != nil {
		return err
	}

	if err := p.run(ctx,
		chromedp.WaitVisible(`input[name="number"]`, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="number"]`, registration.Plate, chromedp.ByQuery),
	); err != nil {
		return err
	}

	p.checkVehicleBrand(ctx, registration.Plate)

	if err := p.run(ctx,
		chromedp.Click(`button.license-plate-add`, chromedp.ByQuery),
		chromedp.Click(`button.next-step`, chromedp.ByQuery),
		chromedp.WaitVisible(`input#end_time`, chromedp.ByQuery),
	); err != nil {
		return err
	}

	for _, field := range formFields(registration) {
		if field.value == "" {
			continue
		}
		if err := p.setField(ctx, field.id, field.value); err != nil {
			return fmt.Errorf("set %s: %w", field.id, err)
		}
	}

	// blur the inputs so the portal recalculates the cost and enables the
	// confirm button
	_ = p.run(ctx, chromedp.Evaluate(
		`document.evaluate("//*[text()='Parkeerkosten']", document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue?.click()`,
		nil,
	))

	if err := p.waitEnabled(ctx, `button.confirmAction`); err != nil {
		p.logger.Warn("confirm button did not become enabled", "err", err)
	}

	return p.run(ctx,
		chromedp.Click(`button.confirmAction`, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

type formField struct {
	id    string
	value string
}

// formFields returns the date and time inputs in the order the portal
// expects them to be filled. Filling end before start makes the form
// reject the end time as being in the past.
func formFields(registration registrar.Registration) []formField {
	return []formField{
		{"start_date", registration.StartDate},
		{"start_time", registration.StartTime},
		{"end_date", registration.EndDate},
		{"end_time", registration.EndTime},
	}
}

func (p *Portal) dismissResumeDialog(ctx context.Context) {
	var clicked bool
	err := p.run(ctx,
		chromedp.Sleep(time.Second),
		chromedp.Evaluate(`(() => {
			const btn = [...document.querySelectorAll('button, a')]
				.find(el => el.textContent.includes('Start een nieuwe'));
			if (btn) { btn.click(); return true; }
			return false;
		})()`, &clicked),
	)
	if err == nil && clicked {
		p.logger.Debug("dismissed resume dialog")
	}
}

func (p *Portal) openRegistrationForm(ctx context.Context) error {
	var visible bool
	if err := p.run(ctx, chromedp.Evaluate(
		`!!document.querySelector('input[name="number"]')`, &visible,
	)); err != nil {
		return err
	}
	if visible {
		return nil
	}

	var clicked bool
	err := p.run(ctx, chromedp.Evaluate(`(() => {
		const btn = document.querySelector('button.add-license-plate') ||
			[...document.querySelectorAll('button, a, [role="button"]')]
				.find(el => el.textContent.toLowerCase().includes('nieuw kenteken'));
		if (btn) { btn.click(); return true; }
		return false;
	})()`, &clicked))
	if err != nil {
		return err
	}
	if !clicked {
		p.logger.Warn("could not find the new-registration button")
	}
	return nil
}

func (p *Portal) checkVehicleBrand(ctx context.Context, plate string) {
	var brand string
	err := p.run(ctx,
		chromedp.WaitVisible(`.auto-brand`, chromedp.ByQuery),
		chromedp.Sleep(time.Second),
		chromedp.Evaluate(`document.querySelector('.auto-brand')?.textContent?.trim() || ''`, &brand),
	)
	if err != nil {
		p.logger.Warn("could not verify vehicle brand", "plate", plate, "err", err)
		return
	}
	p.logger.Info("vehicle identified", "plate", plate, "brand", brand)
	if strings.Contains(brand, "Buitenlands") || strings.Contains(brand, "onbekend") {
		p.logger.Warn("plate may be invalid or unknown", "plate", plate, "brand", brand)
	}
}

// setField writes a form field and fires the events the portal's scripts
// listen for.
func (p *Portal) setField(ctx context.Context, id, value string) error {
	script := fmt.Sprintf(`(() => {
		const el = document.getElementById(%q);
		if (!el) return false;
		el.value = %q;
		for (const kind of ['input', 'change', 'blur']) {
			el.dispatchEvent(new Event(kind, { bubbles: true }));
		}
		return true;
	})()`, id, value)

	var ok bool
	if err := p.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return errors.New("field not found")
	}
	return nil
}

func (p *Portal) waitEnabled(ctx context.Context, selector string) error {
	deadline := time.Now().Add(5 * time.Second)
	script := fmt.Sprintf(`(() => { const el = document.querySelector(%q); return !!el && !el.disabled; })()`, selector)
	for time.Now().Before(deadline) {
		var enabled bool
		if err := p.run(ctx, chromedp.Evaluate(script, &enabled)); err != nil {
			return err
		}
		if enabled {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
	return errors.New("timed out waiting for " + selector)
}

// SubmitStop locates the session on the active-sessions page by its derived
// id and clicks its stop button. Returns false when the session is no longer
// shown.
func (p *Portal) SubmitStop(ctx context.Context, session parking.Session) (bool, error) {
	if err := p.ensureDashboard(ctx); err != nil {
		return false, fmt.Errorf("portal: dashboard: %w", err)
	}

	// collect each item's markup together with its start-time sibling, so
	// parsing matches the way the session list was built
	var fragments []string
	err := p.run(ctx, chromedp.Evaluate(`[...document.querySelectorAll('.park-item-desktop')].map(el => {
		let html = el.outerHTML;
		for (let sib = el.nextElementSibling; sib && !sib.classList.contains('park-item-desktop'); sib = sib.nextElementSibling) {
			if (sib.classList.contains('start-time')) { html += sib.outerHTML; break; }
		}
		return html;
	})`, &fragments))
	if err != nil {
		return false, fmt.Errorf("portal: stop: %w", err)
	}

	for i, fragment := range fragments {
		candidate, ok := p.parser.SessionFromFragment(fragment)
		if !ok || candidate.ID != session.ID {
			continue
		}

		p.logger.Info("stopping session", "id", session.ID, "plate", session.Plate)
		script := fmt.Sprintf(
			`document.querySelectorAll('.park-item-desktop')[%d].querySelector('button.stop-parking-action')?.click()`, i)
		if err = p.run(ctx, chromedp.Evaluate(script, nil)); err != nil {
			submissionCounter.WithLabelValues("stop", "error").Inc()
			return false, fmt.Errorf("portal: stop: %w", err)
		}

		p.confirmStop(ctx)
		submissionCounter.WithLabelValues("stop", "ok").Inc()
		return true, nil
	}

	p.logger.Warn("session not found on portal", "id", session.ID)
	return false, nil
}

func (p *Portal) confirmStop(ctx context.Context) {
	err := p.run(ctx,
		chromedp.Evaluate(`(() => {
			const btn = document.querySelector('button.confirm-stop, button.btn-primary') ||
				[...document.querySelectorAll('button')]
					.find(el => ['Stoppen', 'Ja'].some(t => el.textContent.includes(t)));
			btn?.click();
		})()`, nil),
		chromedp.Sleep(time.Second),
	)
	if err != nil {
		p.logger.Warn("no stop confirmation dialog", "err", err)
	}
}
