// Package engine implements the booking loop: log in, submit the search,
// scan result rows, claim the first open seat and keep refreshing with
// jittered backoff until the session reaches a terminal state. The loop has
// to survive a noisy page — stale elements, surprise popups, intercepted
// clicks, dropped logins — without crashing and without hammering the site.
package engine

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/eogh234/srt-reservation/internal/browser"
	"github.com/eogh234/srt-reservation/internal/models"
	"github.com/eogh234/srt-reservation/internal/notify"
)

type Config struct {
	Layout browser.Layout

	// LoginRetries bounds both the initial login and a broken search
	// submission; each failed attempt is reported and waits LoginRetryDelay.
	LoginRetries    int
	LoginRetryDelay time.Duration

	// ReadRetries bounds the re-reads of a row whose cells have not
	// rendered yet before the row is degraded to unknown.
	ReadRetries int

	// Backoff bounds the randomized pause between scan passes. The pause
	// is a deliberate rate limit against the remote service, not tunable
	// away to zero in production use.
	BackoffMin time.Duration
	BackoffMax time.Duration

	// Progress notifications fire for the first NotifyFirst refreshes, at
	// the NotifyMilestone refresh, and at every 100th and 1000th. The two
	// thresholds are independent.
	NotifyFirst     int
	NotifyMilestone int

	// sleep is swapped out by tests; nil means a context-aware wait.
	sleep func(ctx context.Context, d time.Duration) error
	// rng drives the backoff jitter; nil seeds from the wall clock.
	rng *rand.Rand
}

func (c Config) withDefaults() Config {
	if c.LoginRetries <= 0 {
		c.LoginRetries = 10
	}
	if c.LoginRetryDelay <= 0 {
		c.LoginRetryDelay = 5 * time.Second
	}
	if c.ReadRetries <= 0 {
		c.ReadRetries = 5
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = 2 * time.Second
	}
	if c.BackoffMax < c.BackoffMin {
		c.BackoffMax = c.BackoffMin + 2*time.Second
	}
	if c.NotifyFirst <= 0 {
		c.NotifyFirst = 5
	}
	if c.NotifyMilestone <= 0 {
		c.NotifyMilestone = 8
	}
	if c.sleep == nil {
		c.sleep = sleepCtx
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c
}

// progressMessage implements the throttle schedule. The milestone refresh
// announces the switch to sparse reporting; exactly one message per
// qualifying refresh.
func (c Config) progressMessage(r int) (string, bool) {
	switch {
	case r == c.NotifyMilestone:
		return "100회마다 알려드립니다💤", true
	case r <= c.NotifyFirst:
		return fmt.Sprintf("새로고침 %d회", r), true
	case r%1000 == 0:
		return "안돼에~😭", true
	case r%100 == 0:
		return fmt.Sprintf("새로고침 %d회", r), true
	default:
		return "", false
	}
}

type Engine struct {
	drv    browser.Driver
	notify notify.Notifier
	cfg    Config
}

func New(drv browser.Driver, n notify.Notifier, cfg Config) *Engine {
	if n == nil {
		n = notify.Discard{}
	}
	return &Engine{drv: drv, notify: n, cfg: cfg.withDefaults()}
}

// Run drives s to one of the three terminal states. It returns nil on
// Booked or WaitlistBooked; a non-nil error means Failed (fatal UI fault,
// exhausted login, or a canceled context).
func (e *Engine) Run(ctx context.Context, s *Session) error {
	e.publishInfo(s)

	if err := e.login(ctx, s); err != nil {
		return e.fail(s, err)
	}

	for attempt := 1; ; attempt++ {
		err := e.submitSearch(ctx, s)
		if err == nil {
			break
		}
		if cerr := ctx.Err(); cerr != nil {
			return e.fail(s, cerr)
		}
		if !browser.IsTransient(err) || attempt >= e.cfg.LoginRetries {
			return e.fail(s, err)
		}
		e.notify.Publish("⚠️조회 페이지 오류. 다시 시도합니다")
		if serr := e.cfg.sleep(ctx, e.backoff()); serr != nil {
			return e.fail(s, serr)
		}
	}

	s.setState(models.StateScanning)
	return e.scanLoop(ctx, s)
}

func (e *Engine) publishInfo(s *Session) {
	q := s.Query
	e.notify.Publish(fmt.Sprintf(
		"====INFO====\n🚉출발역: %s\n🚉도착역: %s\n📆출발 일자: %s\n⏰출발 시간: %s\n🚅체크할 열차 수: %d\n😙예약 대기 여부: %v",
		q.DepartureStation, q.ArrivalStation, q.DepartureDate, q.DepartureTime,
		q.TrainsToCheck, q.WantWaitlist))
}

// login submits the credentials, retrying transient faults with a pause and
// a notification per failed attempt.
func (e *Engine) login(ctx context.Context, s *Session) error {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.LoginRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := e.tryLogin(s)
		if err == nil {
			return nil
		}
		if !browser.IsTransient(err) {
			return err
		}
		lastErr = err
		e.notify.Publish(fmt.Sprintf("[에러발생] 로그인 재시도..%d회", attempt))
		if serr := e.cfg.sleep(ctx, e.cfg.LoginRetryDelay); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("login failed after %d attempts: %w", e.cfg.LoginRetries, lastErr)
}

func (e *Engine) tryLogin(s *Session) error {
	l := e.cfg.Layout
	if err := e.drv.Navigate(l.LoginURL); err != nil {
		return err
	}
	if err := e.drv.Fill(l.LoginIDField, s.creds.ID); err != nil {
		return err
	}
	if err := e.drv.Fill(l.LoginPasswordField, s.creds.Secret); err != nil {
		return err
	}
	return e.drv.Click(l.LoginSubmit)
}

// relogin re-runs the login form once after a modal blew the session away.
// A transient failure here is tolerated; the next fault will try again.
func (e *Engine) relogin(s *Session) error {
	if err := e.tryLogin(s); err != nil {
		if !browser.IsTransient(err) {
			return err
		}
		log.Printf("[Engine] re-login attempt failed: %v", err)
	}
	return nil
}

func (e *Engine) submitSearch(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := e.cfg.Layout
	q := s.Query

	if err := e.drv.Navigate(l.SearchURL); err != nil {
		return err
	}
	if err := e.drv.Fill(l.DepartureField, q.DepartureStation); err != nil {
		return err
	}
	if err := e.drv.Fill(l.ArrivalField, q.ArrivalStation); err != nil {
		return err
	}
	if err := e.fillDate(q.DepartureDate); err != nil {
		return err
	}
	if err := e.drv.SelectOption(l.TimeSelect, q.DepartureTime); err != nil {
		return err
	}

	log.Printf("[Engine] 기차를 조회합니다: %s → %s, %s %s시 이후, 상위 %d개",
		q.DepartureStation, q.ArrivalStation, q.DepartureDate, q.DepartureTime, q.TrainsToCheck)

	if err := e.drv.Click(l.SearchSubmit); err != nil {
		return err
	}
	s.setState(models.StateSearchSubmitted)
	return nil
}

func (e *Engine) fillDate(date string) error {
	l := e.cfg.Layout
	if l.YearSelect == "" {
		return e.drv.SelectOption(l.DateSelect, date)
	}
	// split-select layout: YYYYMMDD across three controls
	if err := e.drv.SelectOption(l.YearSelect, date[:4]); err != nil {
		return err
	}
	if err := e.drv.SelectOption(l.MonthSelect, date[4:6]); err != nil {
		return err
	}
	return e.drv.SelectOption(l.DaySelect, date[6:])
}

// scanLoop is the heart of the engine: inspect the top rows, claim what is
// open, otherwise back off, refresh and go again. It only returns on a
// terminal state.
func (e *Engine) scanLoop(ctx context.Context, s *Session) error {
	for {
		for i := 1; i <= s.Query.TrainsToCheck; i++ {
			if err := ctx.Err(); err != nil {
				return e.fail(s, err)
			}

			row, err := e.readRow(ctx, s, i)
			if err != nil {
				return e.fail(s, err)
			}

			if row.Standard == models.SeatAvailable {
				booked, err := e.claimSeat(ctx, s, i)
				if err != nil {
					return e.fail(s, err)
				}
				if booked {
					s.setState(models.StateBooked)
					e.notify.Publish("예약 성공🎉")
					return nil
				}
			}

			if s.Query.WantWaitlist && row.Waitlist == models.WaitlistAvailable {
				booked, err := e.claimWaitlist(s, i)
				if err != nil {
					return e.fail(s, err)
				}
				if booked {
					s.setState(models.StateWaitlistBooked)
					e.notify.Publish("예약 대기 완료🎉")
					return nil
				}
			}
		}

		// full pass without a seat: back off, refresh, scan again
		if err := e.cfg.sleep(ctx, e.backoff()); err != nil {
			return e.fail(s, err)
		}
		if err := e.refresh(s); err != nil {
			return e.fail(s, err)
		}
	}
}

// readRow inspects one result row. Transient faults degrade the row to
// unknown rather than aborting the pass; unknown rows are never claimed.
func (e *Engine) readRow(ctx context.Context, s *Session, i int) (models.SeatRow, error) {
	l := e.cfg.Layout
	row := models.SeatRow{Index: i}

	stdText, err := e.readStatus(l.StandardCell(i))
	if err != nil {
		stdText, err = e.recoverRead(ctx, s, l.StandardCell(i), err)
		if err != nil {
			return row, err
		}
	}
	row.Standard = l.ClassifySeat(stdText)

	waitText, err := e.readStatus(l.WaitlistCell(i))
	if err != nil {
		waitText, err = e.recoverRead(ctx, s, l.WaitlistCell(i), err)
		if err != nil {
			return row, err
		}
	}
	row.Waitlist = l.ClassifyWaitlist(waitText)

	return row, nil
}

func (e *Engine) readStatus(selector string) (string, error) {
	if attr := e.cfg.Layout.StatusAttr; attr != "" {
		return e.drv.ReadAttribute(selector, attr)
	}
	return e.drv.ReadText(selector)
}

// recoverRead applies the per-kind recovery policy for a failed cell read.
// A nil error with empty text means the row goes through as unknown.
func (e *Engine) recoverRead(ctx context.Context, s *Session, selector string, err error) (string, error) {
	kind, ok := browser.KindOf(err)
	if !ok || kind == browser.DriverUnavailable {
		return "", err
	}

	switch kind {
	case browser.StaleElement:
		// the table re-rendered under us; this pass's reading is void
		return "", nil

	case browser.UnexpectedModal:
		e.notify.Publish("⚠️팝업 발생 에러")
		if _, derr := e.drv.DismissModalIfPresent(); derr != nil {
			// dismissal failing usually means the session was dropped
			if lerr := e.relogin(s); lerr != nil {
				return "", lerr
			}
		}
		return "", nil

	case browser.ElementMissing:
		for attempt := 0; attempt < e.cfg.ReadRetries; attempt++ {
			if cerr := ctx.Err(); cerr != nil {
				return "", cerr
			}
			text, rerr := e.readStatus(selector)
			if rerr == nil {
				return text, nil
			}
			if !browser.IsTransient(rerr) {
				return "", rerr
			}
		}
		if berr := e.drv.Back(); berr != nil && !browser.IsTransient(berr) {
			return "", berr
		}
		return "", nil

	default:
		return "", nil
	}
}

// claimSeat clicks the claim control of row i and checks the post-click
// success marker. It returns true when the seat is ours; false with a nil
// error means someone beat us to it and scanning continues.
func (e *Engine) claimSeat(ctx context.Context, s *Session, i int) (bool, error) {
	l := e.cfg.Layout
	s.setState(models.StateClaimAttempted)
	e.notify.Publish("예약 가능 클릭🫵")

	sel := l.ClaimControl(i)
	if err := e.drv.Click(sel); err != nil {
		kind, ok := browser.KindOf(err)
		if !ok || kind == browser.DriverUnavailable {
			return false, err
		}
		switch kind {
		case browser.ClickIntercepted:
			// alternate activation path, tried exactly once
			if perr := e.drv.PressEnter(sel); perr != nil {
				if !browser.IsTransient(perr) {
					return false, perr
				}
				s.setState(models.StateScanning)
				return false, nil
			}
		case browser.UnexpectedModal:
			e.notify.Publish("⚠️팝업 발생 에러!")
			if _, derr := e.drv.AcceptModalIfPresent(); derr != nil {
				if lerr := e.relogin(s); lerr != nil {
					return false, lerr
				}
			}
		default: // stale or missing: the row is gone, abandon it
			if berr := e.drv.Back(); berr != nil && !browser.IsTransient(berr) {
				return false, berr
			}
			s.setState(models.StateScanning)
			return false, nil
		}
	}

	// the site raises a confirmation dialog after the click
	if _, err := e.drv.AcceptModalIfPresent(); err != nil {
		if !browser.IsTransient(err) {
			return false, err
		}
		if lerr := e.relogin(s); lerr != nil {
			return false, lerr
		}
	}

	if _, err := e.drv.ReadText(l.SuccessMarker); err == nil {
		return true, nil
	} else if kind, _ := browser.KindOf(err); kind == browser.DriverUnavailable {
		return false, err
	}

	// marker absent: the seat went to someone else between scan and click
	e.notify.Publish("잔여석 없음. 다시 검색")
	if berr := e.drv.Back(); berr != nil && !browser.IsTransient(berr) {
		return false, berr
	}
	s.setState(models.StateScanning)
	return false, nil
}

// claimWaitlist mirrors claimSeat for the waitlist control. Only reached
// when the trip asked for waitlist slots.
func (e *Engine) claimWaitlist(s *Session, i int) (bool, error) {
	l := e.cfg.Layout
	s.setState(models.StateClaimAttempted)

	sel := l.WaitlistControl(i)
	if err := e.drv.Click(sel); err != nil {
		kind, ok := browser.KindOf(err)
		if !ok || kind == browser.DriverUnavailable {
			return false, err
		}
		if kind == browser.ClickIntercepted {
			if perr := e.drv.PressEnter(sel); perr != nil {
				if !browser.IsTransient(perr) {
					return false, perr
				}
				s.setState(models.StateScanning)
				return false, nil
			}
		} else {
			e.notify.Publish("⚠️에러발생..예약하기를 다시 입력해주세요")
			if berr := e.drv.Back(); berr != nil && !browser.IsTransient(berr) {
				return false, berr
			}
			s.setState(models.StateScanning)
			return false, nil
		}
	}

	if _, err := e.drv.AcceptModalIfPresent(); err != nil {
		if !browser.IsTransient(err) {
			return false, err
		}
		if lerr := e.relogin(s); lerr != nil {
			return false, lerr
		}
	}

	return true, nil
}

// refresh resubmits the search and reports progress per the throttle
// schedule. The counter advances even when the click itself glitched; the
// pass still happened.
func (e *Engine) refresh(s *Session) error {
	if err := e.drv.Click(e.cfg.Layout.RefreshControl); err != nil {
		if !browser.IsTransient(err) {
			return err
		}
		log.Printf("[Engine] refresh click failed: %v", err)
	}

	r := s.incRefresh()
	log.Printf("[Engine] 새로고침 %d회", r)
	if msg, ok := e.cfg.progressMessage(r); ok {
		e.notify.Publish(msg)
	}
	return nil
}

func (e *Engine) backoff() time.Duration {
	min, max := e.cfg.BackoffMin, e.cfg.BackoffMax
	if max <= min {
		return min
	}
	return min + time.Duration(e.cfg.rng.Int63n(int64(max-min)+1))
}

func (e *Engine) fail(s *Session, err error) error {
	s.setError(err)
	s.setState(models.StateFailed)
	e.notify.Publish(fmt.Sprintf("⚠️세션 종료: %v", err))
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
