package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eogh234/srt-reservation/internal/browser"
	"github.com/eogh234/srt-reservation/internal/models"
)

// fakeDriver is a scriptable Driver. Behavior hooks default to success;
// every call is recorded for assertions.
type fakeDriver struct {
	mu        sync.Mutex
	navigates []string
	fills     []string
	selects   []string
	clicks    []string
	presses   []string
	backs     int

	navigateFn func(url string) error
	clickFn    func(sel string) error
	pressFn    func(sel string) error
	readTextFn func(sel string) (string, error)
	readAttrFn func(sel, name string) (string, error)
	acceptFn   func() (bool, error)
	dismissFn  func() (bool, error)
}

func (f *fakeDriver) Navigate(url string) error {
	f.mu.Lock()
	f.navigates = append(f.navigates, url)
	f.mu.Unlock()
	if f.navigateFn != nil {
		return f.navigateFn(url)
	}
	return nil
}

func (f *fakeDriver) Fill(sel, text string) error {
	f.mu.Lock()
	f.fills = append(f.fills, sel+"="+text)
	f.mu.Unlock()
	return nil
}

func (f *fakeDriver) SelectOption(sel, value string) error {
	f.mu.Lock()
	f.selects = append(f.selects, sel+"="+value)
	f.mu.Unlock()
	return nil
}

func (f *fakeDriver) Click(sel string) error {
	f.mu.Lock()
	f.clicks = append(f.clicks, sel)
	f.mu.Unlock()
	if f.clickFn != nil {
		return f.clickFn(sel)
	}
	return nil
}

func (f *fakeDriver) PressEnter(sel string) error {
	f.mu.Lock()
	f.presses = append(f.presses, sel)
	f.mu.Unlock()
	if f.pressFn != nil {
		return f.pressFn(sel)
	}
	return nil
}

func (f *fakeDriver) ReadText(sel string) (string, error) {
	if f.readTextFn != nil {
		return f.readTextFn(sel)
	}
	return "", nil
}

func (f *fakeDriver) ReadAttribute(sel, name string) (string, error) {
	if f.readAttrFn != nil {
		return f.readAttrFn(sel, name)
	}
	return "", nil
}

func (f *fakeDriver) AcceptModalIfPresent() (bool, error) {
	if f.acceptFn != nil {
		return f.acceptFn()
	}
	return false, nil
}

func (f *fakeDriver) DismissModalIfPresent() (bool, error) {
	if f.dismissFn != nil {
		return f.dismissFn()
	}
	return false, nil
}

func (f *fakeDriver) Back() error {
	f.mu.Lock()
	f.backs++
	f.mu.Unlock()
	return nil
}

func (f *fakeDriver) Close() error { return nil }

func (f *fakeDriver) clickCount(sel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.clicks {
		if c == sel {
			n++
		}
	}
	return n
}

func (f *fakeDriver) fillCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.fills {
		if strings.HasPrefix(c, prefix+"=") {
			n++
		}
	}
	return n
}

// recorder captures published notifications.
type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Publish(text string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, text)
	r.mu.Unlock()
}

func (r *recorder) count(substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if strings.Contains(m, substr) {
			n++
		}
	}
	return n
}

func testLayout() browser.Layout {
	return browser.Layout{
		LoginURL:           "https://rail.test/login",
		SearchURL:          "https://rail.test/search",
		LoginIDField:       "login-id",
		LoginPasswordField: "login-pw",
		LoginSubmit:        "login-submit",
		DepartureField:     "dpt",
		ArrivalField:       "arr",
		DateSelect:         "date",
		TimeSelect:         "time",
		SearchSubmit:       "search-submit",
		RefreshControl:     "search-submit",
		StandardCellFmt:    "std-%d",
		WaitlistCellFmt:    "wait-%d",
		ClaimControlFmt:    "claim-%d",
		WaitlistControlFmt: "wlclaim-%d",
		ClaimMarker:        "예약하기",
		SoldOutMarker:      "매진",
		WaitlistMarker:     "신청하기",
		SuccessMarker:      "success",
	}
}

func testConfig() Config {
	return Config{
		Layout:          testLayout(),
		LoginRetryDelay: time.Millisecond,
		BackoffMin:      time.Millisecond,
		BackoffMax:      2 * time.Millisecond,
		// default stub ends the loop at the first backoff
		sleep: func(ctx context.Context, d time.Duration) error {
			return context.Canceled
		},
		rng: rand.New(rand.NewSource(1)),
	}
}

func testSession(trains int, waitlist bool) *Session {
	return NewSession(models.TripQuery{
		DepartureStation: "수서",
		ArrivalStation:   "부산",
		DepartureDate:    "20260915",
		DepartureTime:    "08",
		TrainsToCheck:    trains,
		WantWaitlist:     waitlist,
	}, models.Credentials{ID: "user", Secret: "secret"})
}

func missingErr(op string) error {
	return browser.NewUIError(browser.ElementMissing, op, nil)
}

func TestRunBooksOnFirstPass(t *testing.T) {
	fd := &fakeDriver{}
	claimed := false
	fd.readTextFn = func(sel string) (string, error) {
		switch sel {
		case "std-1":
			return "예약하기", nil
		case "success":
			if claimed {
				return "예약 완료", nil
			}
			return "", missingErr("read success")
		}
		return "", nil
	}
	fd.clickFn = func(sel string) error {
		if sel == "claim-1" {
			claimed = true
		}
		return nil
	}

	rec := &recorder{}
	s := testSession(1, false)
	err := New(fd, rec, testConfig()).Run(context.Background(), s)

	require.NoError(t, err)
	assert.Equal(t, models.StateBooked, s.State())
	assert.Equal(t, 0, s.RefreshCount())
	assert.Equal(t, 1, fd.clickCount("claim-1"))
	assert.Equal(t, 1, rec.count("====INFO===="))
	assert.Equal(t, 1, rec.count("예약 성공"))
}

func TestRunBooksAfterThreeRefreshes(t *testing.T) {
	fd := &fakeDriver{}
	pass := 0
	claimed := false
	fd.readTextFn = func(sel string) (string, error) {
		if sel == "std-1" {
			pass++
		}
		switch {
		case sel == "success":
			if claimed {
				return "예약 완료", nil
			}
			return "", missingErr("read success")
		case sel == "std-2" && pass == 4:
			return "예약하기", nil
		case strings.HasPrefix(sel, "std-"):
			return "매진", nil
		}
		return "", nil
	}
	fd.clickFn = func(sel string) error {
		if sel == "claim-2" {
			claimed = true
		}
		return nil
	}

	cfg := testConfig()
	cfg.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	rec := &recorder{}
	s := testSession(3, false)
	err := New(fd, rec, cfg).Run(context.Background(), s)

	require.NoError(t, err)
	assert.Equal(t, models.StateBooked, s.State())
	assert.Equal(t, 3, s.RefreshCount())
	assert.Equal(t, 3, rec.count("새로고침"))
	assert.Equal(t, 1, rec.count("예약 성공"))
	assert.Equal(t, 1, fd.clickCount("claim-2"))
	assert.Zero(t, fd.clickCount("claim-1"))
}

func TestRunStopsWhenContextCanceled(t *testing.T) {
	fd := &fakeDriver{}
	fd.readTextFn = func(sel string) (string, error) {
		if sel == "success" {
			return "", missingErr("read success")
		}
		if strings.HasPrefix(sel, "std-") {
			return "매진", nil
		}
		return "", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	sleeps := 0
	cfg.sleep = func(c context.Context, d time.Duration) error {
		sleeps++
		if sleeps == 4 {
			cancel()
			return c.Err()
		}
		return nil
	}

	rec := &recorder{}
	s := testSession(2, false)
	err := New(fd, rec, cfg).Run(ctx, s)

	require.Error(t, err)
	assert.Equal(t, models.StateFailed, s.State())
	assert.Equal(t, 3, s.RefreshCount())
	assert.Equal(t, 3, rec.count("새로고침"))
	assert.Equal(t, 1, rec.count("세션 종료"))
}

func TestProgressMessageSchedule(t *testing.T) {
	cfg := Config{}.withDefaults()

	fires := map[int]string{
		1:    "새로고침 1회",
		2:    "새로고침 2회",
		5:    "새로고침 5회",
		8:    "100회마다 알려드립니다💤",
		100:  "새로고침 100회",
		200:  "새로고침 200회",
		1000: "안돼에~😭",
	}
	for r, want := range fires {
		msg, ok := cfg.progressMessage(r)
		assert.True(t, ok, "refresh %d should fire", r)
		assert.Equal(t, want, msg, "refresh %d", r)
	}

	for _, r := range []int{6, 7, 9, 50, 999, 1001} {
		_, ok := cfg.progressMessage(r)
		assert.False(t, ok, "refresh %d should stay quiet", r)
	}
}

func TestRunIgnoresWaitlistWhenNotWanted(t *testing.T) {
	fd := &fakeDriver{}
	fd.readTextFn = func(sel string) (string, error) {
		switch {
		case sel == "success":
			return "", missingErr("read success")
		case strings.HasPrefix(sel, "std-"):
			return "매진", nil
		case strings.HasPrefix(sel, "wait-"):
			return "신청하기", nil
		}
		return "", nil
	}

	rec := &recorder{}
	s := testSession(1, false)
	err := New(fd, rec, testConfig()).Run(context.Background(), s)

	require.Error(t, err) // ends on the canceled sleep stub
	assert.Zero(t, fd.clickCount("wlclaim-1"))
}

func TestRunClaimsWaitlist(t *testing.T) {
	fd := &fakeDriver{}
	fd.readTextFn = func(sel string) (string, error) {
		switch {
		case strings.HasPrefix(sel, "std-"):
			return "매진", nil
		case strings.HasPrefix(sel, "wait-"):
			return "신청하기", nil
		}
		return "", nil
	}

	rec := &recorder{}
	s := testSession(1, true)
	err := New(fd, rec, testConfig()).Run(context.Background(), s)

	require.NoError(t, err)
	assert.Equal(t, models.StateWaitlistBooked, s.State())
	assert.Equal(t, 1, fd.clickCount("wlclaim-1"))
	assert.Equal(t, 1, rec.count("예약 대기 완료"))
}

func TestRunSkipsStaleRowAndBooksNext(t *testing.T) {
	fd := &fakeDriver{}
	claimed := false
	fd.readTextFn = func(sel string) (string, error) {
		switch sel {
		case "std-1":
			return "", browser.NewUIError(browser.StaleElement, "read std-1", nil)
		case "std-2":
			return "예약하기", nil
		case "success":
			if claimed {
				return "예약 완료", nil
			}
			return "", missingErr("read success")
		}
		return "", nil
	}
	fd.clickFn = func(sel string) error {
		if sel == "claim-2" {
			claimed = true
		}
		return nil
	}

	s := testSession(2, false)
	err := New(fd, &recorder{}, testConfig()).Run(context.Background(), s)

	require.NoError(t, err)
	assert.Equal(t, models.StateBooked, s.State())
	assert.Zero(t, fd.clickCount("claim-1"))
	assert.Equal(t, 1, fd.clickCount("claim-2"))
}

func TestClaimFallsBackToEnterWhenIntercepted(t *testing.T) {
	fd := &fakeDriver{}
	claimed := false
	fd.readTextFn = func(sel string) (string, error) {
		switch sel {
		case "std-1":
			return "예약하기", nil
		case "success":
			if claimed {
				return "예약 완료", nil
			}
			return "", missingErr("read success")
		}
		return "", nil
	}
	fd.clickFn = func(sel string) error {
		if sel == "claim-1" {
			return browser.NewUIError(browser.ClickIntercepted, "click claim-1", nil)
		}
		return nil
	}
	fd.pressFn = func(sel string) error {
		claimed = true
		return nil
	}

	s := testSession(1, false)
	err := New(fd, &recorder{}, testConfig()).Run(context.Background(), s)

	require.NoError(t, err)
	assert.Equal(t, models.StateBooked, s.State())
	assert.Equal(t, []string{"claim-1"}, fd.presses)
}

func TestClaimAbandonsVanishedRow(t *testing.T) {
	fd := &fakeDriver{}
	claimed := false
	fd.readTextFn = func(sel string) (string, error) {
		switch sel {
		case "std-1", "std-2":
			return "예약하기", nil
		case "success":
			if claimed {
				return "예약 완료", nil
			}
			return "", missingErr("read success")
		}
		return "", nil
	}
	fd.clickFn = func(sel string) error {
		switch sel {
		case "claim-1":
			return missingErr("click claim-1")
		case "claim-2":
			claimed = true
		}
		return nil
	}

	rec := &recorder{}
	s := testSession(2, false)
	err := New(fd, rec, testConfig()).Run(context.Background(), s)

	require.NoError(t, err)
	assert.Equal(t, models.StateBooked, s.State())
	assert.GreaterOrEqual(t, fd.backs, 1)
	assert.Equal(t, 2, rec.count("예약 가능 클릭"))
}

func TestLoginRetriesExhausted(t *testing.T) {
	fd := &fakeDriver{}
	fd.clickFn = func(sel string) error {
		if sel == "login-submit" {
			return missingErr("click login-submit")
		}
		return nil
	}

	cfg := testConfig()
	cfg.LoginRetries = 3
	cfg.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	rec := &recorder{}
	s := testSession(1, false)
	err := New(fd, rec, cfg).Run(context.Background(), s)

	require.Error(t, err)
	assert.Equal(t, models.StateFailed, s.State())
	assert.Equal(t, 3, rec.count("로그인 재시도"))
	assert.Equal(t, 1, rec.count("세션 종료"))
}

func TestFatalDriverErrorEndsSession(t *testing.T) {
	fd := &fakeDriver{}
	fd.readTextFn = func(sel string) (string, error) {
		if sel == "std-1" {
			return "", browser.NewUIError(browser.DriverUnavailable, "read std-1",
				fmt.Errorf("browser closed"))
		}
		return "", nil
	}

	rec := &recorder{}
	s := testSession(1, false)
	err := New(fd, rec, testConfig()).Run(context.Background(), s)

	require.Error(t, err)
	kind, ok := browser.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, browser.DriverUnavailable, kind)
	assert.Equal(t, models.StateFailed, s.State())
}

func TestModalDismissFailureTriggersRelogin(t *testing.T) {
	fd := &fakeDriver{}
	modalSeen := false
	fd.readTextFn = func(sel string) (string, error) {
		if sel == "std-1" && !modalSeen {
			modalSeen = true
			return "", browser.NewUIError(browser.UnexpectedModal, "read std-1", nil)
		}
		if sel == "success" {
			return "", missingErr("read success")
		}
		if strings.HasPrefix(sel, "std-") {
			return "매진", nil
		}
		return "", nil
	}
	fd.dismissFn = func() (bool, error) {
		return false, fmt.Errorf("no dialog handler")
	}

	rec := &recorder{}
	s := testSession(1, false)
	err := New(fd, rec, testConfig()).Run(context.Background(), s)

	require.Error(t, err) // canceled sleep stub ends the loop
	assert.Equal(t, 2, fd.fillCount("login-id"))
	assert.Equal(t, 1, rec.count("팝업 발생 에러"))
}
