package browser

import (
	"fmt"
	"strings"

	"github.com/eogh234/srt-reservation/internal/models"
)

// Layout binds the engine to one result-page structure. The two rail sites
// disagree on how trains are laid out in the result table: SRT lists one
// train per row, KTX interleaves a metadata row under every train so trains
// sit at every second row. RowOffset and RowStride make that a configuration
// choice instead of a hard-coded convention.
type Layout struct {
	LoginURL  string
	SearchURL string

	LoginIDField       string
	LoginPasswordField string
	LoginSubmit        string

	DepartureField string
	ArrivalField   string

	// SRT exposes the date as a single select; KTX splits it into year,
	// month and day selects. YearSelect being set switches to split mode.
	DateSelect  string
	YearSelect  string
	MonthSelect string
	DaySelect   string
	TimeSelect  string

	SearchSubmit   string
	RefreshControl string

	RowOffset int
	RowStride int

	// Cell and control selectors, each with one %d verb taking the
	// nth-child row number produced by RowNumber.
	StandardCellFmt    string
	WaitlistCellFmt    string
	ClaimControlFmt    string
	WaitlistControlFmt string

	// StatusAttr, when set, makes the engine read that attribute of the
	// status cell instead of its text (KTX renders statuses as images).
	StatusAttr string

	SuccessMarker string

	ClaimMarker    string
	SoldOutMarker  string
	WaitlistMarker string
}

// RowNumber maps a 1-based scan index to the nth-child position in the
// result table.
func (l Layout) RowNumber(i int) int {
	stride := l.RowStride
	if stride < 1 {
		stride = 1
	}
	offset := l.RowOffset
	if offset < 1 {
		offset = 1
	}
	return offset + (i-1)*stride
}

func (l Layout) StandardCell(i int) string {
	return fmt.Sprintf(l.StandardCellFmt, l.RowNumber(i))
}

func (l Layout) WaitlistCell(i int) string {
	return fmt.Sprintf(l.WaitlistCellFmt, l.RowNumber(i))
}

func (l Layout) ClaimControl(i int) string {
	return fmt.Sprintf(l.ClaimControlFmt, l.RowNumber(i))
}

func (l Layout) WaitlistControl(i int) string {
	return fmt.Sprintf(l.WaitlistControlFmt, l.RowNumber(i))
}

// ClassifySeat interprets a standard-seat cell reading. An empty reading
// means the cell state is unknown; unknown is never treated as available.
func (l Layout) ClassifySeat(text string) models.SeatStatus {
	switch {
	case strings.TrimSpace(text) == "":
		return models.SeatUnknown
	case l.SoldOutMarker != "" && strings.Contains(text, l.SoldOutMarker):
		return models.SeatSoldOut
	case l.ClaimMarker != "" && strings.Contains(text, l.ClaimMarker):
		return models.SeatAvailable
	default:
		return models.SeatSoldOut
	}
}

func (l Layout) ClassifyWaitlist(text string) models.WaitlistStatus {
	switch {
	case strings.TrimSpace(text) == "":
		return models.WaitlistUnknown
	case l.WaitlistMarker != "" && strings.Contains(text, l.WaitlistMarker):
		return models.WaitlistAvailable
	default:
		return models.WaitlistClosed
	}
}

const srtTableFmt = "#result-form > fieldset > div.tbl_wrap.th_thead > table > tbody > tr:nth-child(%d)"

// SRT returns the layout of etk.srail.kr's schedule page: one train per
// result row, statuses as cell text.
func SRT() Layout {
	return Layout{
		LoginURL:  "https://etk.srail.co.kr/cmc/01/selectLoginForm.do",
		SearchURL: "https://etk.srail.kr/hpg/hra/01/selectScheduleList.do",

		LoginIDField:       "#srchDvNm01",
		LoginPasswordField: "#hmpgPwdCphd01",
		LoginSubmit:        "div.srchDvCd1 input.loginSubmit",

		DepartureField: "#dptRsStnCdNm",
		ArrivalField:   "#arvRsStnCdNm",
		DateSelect:     "#dptDt",
		TimeSelect:     "#dptTm",

		SearchSubmit:   "input[value='조회하기']",
		RefreshControl: "input[value='조회하기']",

		RowOffset: 1,
		RowStride: 1,

		StandardCellFmt:    srtTableFmt + " > td:nth-child(7)",
		WaitlistCellFmt:    srtTableFmt + " > td:nth-child(8)",
		ClaimControlFmt:    srtTableFmt + " > td:nth-child(7) > a",
		WaitlistControlFmt: srtTableFmt + " > td:nth-child(8) > a",

		SuccessMarker: "#isFalseGotoMain",

		ClaimMarker:    "예약하기",
		SoldOutMarker:  "매진",
		WaitlistMarker: "신청하기",
	}
}

const ktxTableFmt = "#tableResult > tbody > tr:nth-child(%d)"

// KTX returns the layout of letskorail.com's search page: trains occupy
// every second row, statuses are the alt text of result images.
func KTX() Layout {
	return Layout{
		LoginURL:  "https://www.letskorail.com/korail/com/login.do",
		SearchURL: "https://www.letskorail.com/ebizprd/EbizPrdTicketpr21100W_pr21110.do",

		LoginIDField:       "#txtMember",
		LoginPasswordField: "#txtPwd",
		LoginSubmit:        "#loginDisplay1 ul li.btn_login a img",

		DepartureField: "#start",
		ArrivalField:   "#get",
		YearSelect:     "#s_year",
		MonthSelect:    "#s_month",
		DaySelect:      "#s_day",
		TimeSelect:     "#s_hour",

		SearchSubmit:   "img[alt='조회하기']",
		RefreshControl: "img[alt='조회하기']",

		RowOffset: 1,
		RowStride: 2,

		StandardCellFmt:    ktxTableFmt + " > td:nth-child(6) img",
		WaitlistCellFmt:    ktxTableFmt + " > td:nth-child(10) img",
		ClaimControlFmt:    ktxTableFmt + " > td:nth-child(6) > a:nth-child(1) > img",
		WaitlistControlFmt: ktxTableFmt + " > td:nth-child(10) > a > img",

		StatusAttr: "alt",

		SuccessMarker: "#isFalseGotoMain",

		ClaimMarker:    "예약하기",
		SoldOutMarker:  "매진",
		WaitlistMarker: "신청하기",
	}
}
