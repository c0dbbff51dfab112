// Package wizard collects a trip query one answer at a time. Each chat owns
// one Conversation; Feed validates the answer for the current step and
// either re-prompts or advances.
package wizard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eogh234/srt-reservation/internal/models"
	"github.com/eogh234/srt-reservation/internal/validation"
)

type Step int

const (
	StepIdle Step = iota
	StepDeparture
	StepArrival
	StepDate
	StepTime
	StepTrainCount
	StepWaitlist
	StepDone
)

const maxTrainsToCheck = 10

// CancelToken aborts the conversation from any step.
const CancelToken = "종료하기"

type Conversation struct {
	step  Step
	query models.TripQuery
}

func New() *Conversation {
	return &Conversation{step: StepIdle}
}

func (c *Conversation) Step() Step { return c.step }

func (c *Conversation) Done() bool { return c.step == StepDone }

// Query returns the collected trip. Only meaningful once Done reports true.
func (c *Conversation) Query() models.TripQuery { return c.query }

func (c *Conversation) Reset() {
	c.step = StepIdle
	c.query = models.TripQuery{}
}

// Start begins (or restarts) the conversation and returns the first prompt.
func (c *Conversation) Start() string {
	c.Reset()
	c.step = StepDeparture
	return "🚅 예약을 시작합니다.\n출발역을 입력해주세요. (예: 수서)"
}

// Feed consumes one answer. An invalid answer keeps the current step and
// returns a correction prompt; a valid one stores the value and returns the
// next prompt, or the summary when the trip is complete. The cancel token
// aborts the conversation wherever it stands.
func (c *Conversation) Feed(input string) string {
	input = strings.TrimSpace(input)

	if input == CancelToken {
		c.Reset()
		return "프로그램을 종료합니다. 처음부터 진행해주세요"
	}

	switch c.step {
	case StepIdle:
		return c.Start()

	case StepDeparture:
		if !validation.IsStation(input) {
			return "❌ 등록되지 않은 역 이름입니다. 다시 입력해주세요. (예: 수서)"
		}
		c.query.DepartureStation = input
		c.step = StepArrival
		return "도착역을 입력해주세요. (예: 부산)"

	case StepArrival:
		if !validation.IsStation(input) {
			return "❌ 등록되지 않은 역 이름입니다. 다시 입력해주세요. (예: 부산)"
		}
		c.query.ArrivalStation = input
		c.step = StepDate
		return "출발 일자를 입력해주세요. (YYYYMMDD, 예: 20260915)"

	case StepDate:
		if err := validation.ValidateDate(input); err != nil {
			return "❌ 날짜 형식이 올바르지 않습니다. YYYYMMDD 형식으로 다시 입력해주세요."
		}
		c.query.DepartureDate = input
		c.step = StepTime
		return "출발 시간을 입력해주세요. (짝수 두 자리, 예: 08)"

	case StepTime:
		if err := validation.ValidateHour(input); err != nil {
			return "❌ 시간은 00부터 22까지의 짝수 두 자리여야 합니다. 다시 입력해주세요."
		}
		c.query.DepartureTime = input
		c.step = StepTrainCount
		return fmt.Sprintf("체크할 열차 수를 입력해주세요. (1~%d)", maxTrainsToCheck)

	case StepTrainCount:
		n, err := strconv.Atoi(input)
		if err != nil || n < 1 || n > maxTrainsToCheck {
			return fmt.Sprintf("❌ 1부터 %d 사이의 숫자를 입력해주세요.", maxTrainsToCheck)
		}
		c.query.TrainsToCheck = n
		c.step = StepWaitlist
		return "예약 대기도 신청할까요? (예/아니오)"

	case StepWaitlist:
		want, ok := parseYesNo(input)
		if !ok {
			return "❌ 예 또는 아니오로 답해주세요."
		}
		c.query.WantWaitlist = want
		c.step = StepDone
		return c.summary()

	default:
		return "이미 입력이 완료되었습니다. 새로 시작하려면 /start 를 입력해주세요."
	}
}

func (c *Conversation) summary() string {
	q := c.query
	return fmt.Sprintf(
		"입력이 완료되었습니다.\n🚉 %s → %s\n📆 %s %s시 이후\n🚅 상위 %d개 확인\n😙 예약 대기: %s\n예약을 시작합니다!",
		q.DepartureStation, q.ArrivalStation, q.DepartureDate, q.DepartureTime,
		q.TrainsToCheck, yesNo(q.WantWaitlist))
}

func parseYesNo(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "예", "네", "y", "yes":
		return true, true
	case "아니오", "아니요", "n", "no":
		return false, true
	}
	return false, false
}

func yesNo(b bool) string {
	if b {
		return "예"
	}
	return "아니오"
}
