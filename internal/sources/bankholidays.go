// Package sources provides the public and school holiday inputs of the
// planner: the gov.uk bank holiday feed with its fallbacks, and the regional
// default school holiday tables.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appLog "holidaycal/internal/log"
	"holidaycal/internal/model"
)

// DefaultBankHolidayURL is the official gov.uk feed.
const DefaultBankHolidayURL = "https://www.gov.uk/bank-holidays.json"

// Origin names where a public holiday list came from.
type Origin string

const (
	OriginGovUK    Origin = "gov.uk"
	OriginFallback Origin = "fallback"
	OriginComputed Origin = "computed"
)

// ErrNoDivision is returned when the feed has no entry for a country.
var ErrNoDivision = errors.New("bank holiday feed has no such division")

type division struct {
	Division string          `json:"division"`
	Events   []model.Holiday `json:"events"`
}

// BankHolidays fetches public holidays from the gov.uk feed.
type BankHolidays struct {
	client *http.Client
	url    string
}

// NewBankHolidays creates a client for the feed at url. An empty url selects
// DefaultBankHolidayURL; a nil client gets a 15s timeout.
func NewBankHolidays(url string, client *http.Client) *BankHolidays {
	if url == "" {
		url = DefaultBankHolidayURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &BankHolidays{client: client, url: url}
}

// Fetch downloads the feed and returns the events for country, as published.
func (b *BankHolidays) Fetch(ctx context.Context, country model.Country) ([]model.Holiday, error) {
	if !country.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownCountry, country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bank holidays: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var feed map[string]division
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("bank holidays: decode: %w", err)
	}

	div, ok := feed[string(country)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDivision, country)
	}
	return div.Events, nil
}

// Load returns the public holidays for country, covering at least year.
// It never fails: when the feed is unreachable the static fallback table is
// used, and any year neither source covers is computed.
func (b *BankHolidays) Load(ctx context.Context, country model.Country, year int) ([]model.Holiday, Origin) {
	events, err := b.Fetch(ctx, country)
	origin := OriginGovUK
	if err != nil {
		appLog.Error("bank holiday fetch failed, using fallback data", err, "country", country, "url", b.url)
		events = Fallback(country)
		origin = OriginFallback
	}

	if !covers(events, year) {
		appLog.Info("public holidays: computing missing year", "country", country, "year", year, "origin", origin)
		events = append(append([]model.Holiday(nil), events...), Computed(country, year)...)
		if origin == OriginFallback {
			origin = OriginComputed
		}
	}
	return events, origin
}

func covers(events []model.Holiday, year int) bool {
	prefix := fmt.Sprintf("%04d-", year)
	for _, e := range events {
		if strings.HasPrefix(e.Date, prefix) {
			return true
		}
	}
	return false
}
