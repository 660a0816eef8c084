package us

import (
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// settleDelay is how long after the closing bell a daily bar is taken as
// final.
const settleDelay = 15 * time.Minute

// session is one trading day and the instant its regular session closes.
type session struct {
	date  string // YYYY-MM-DD
	close time.Time
}

// LatestFinishedTradingDay asks the Alpaca trading calendar for the past week
// and returns the most recent session whose daily bar is final. Early closes
// are honoured because the cutoff comes from each day's published close.
func LatestFinishedTradingDay(apiKey, apiSecret, baseURL string) (time.Time, error) {
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Time{}, fmt.Errorf("loading ET timezone: %w", err)
	}
	now := time.Now().In(et)

	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})
	days, err := client.GetCalendar(alpaca.GetCalendarRequest{
		Start: now.AddDate(0, 0, -7),
		End:   now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("fetching trading calendar: %w", err)
	}

	sessions := make([]session, 0, len(days))
	for _, d := range days {
		closeAt, err := time.ParseInLocation("2006-01-02 15:04", d.Date+" "+d.Close, et)
		if err != nil {
			return time.Time{}, fmt.Errorf("calendar day %s: %w", d.Date, err)
		}
		sessions = append(sessions, session{date: d.Date, close: closeAt})
	}
	return latestFinished(sessions, now)
}

// latestFinished returns the date (midnight UTC) of the last session, in
// ascending input, whose close plus settleDelay is not after now.
func latestFinished(sessions []session, now time.Time) (time.Time, error) {
	if len(sessions) == 0 {
		return time.Time{}, fmt.Errorf("no trading days returned from calendar")
	}
	for i := len(sessions) - 1; i >= 0; i-- {
		if !sessions[i].close.Add(settleDelay).After(now) {
			return time.Parse(time.DateOnly, sessions[i].date)
		}
	}
	return time.Time{}, fmt.Errorf("no finished session on or before %s", now.Format(time.DateOnly))
}
