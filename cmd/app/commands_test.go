package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"kalshi_news/internal/domain"
)

func TestPrintSnapshot(t *testing.T) {
	hot := []domain.ScoredMarket{
		{Market: domain.Market{Ticker: "FED-DEC-25", Title: "Fed rate cuts", Category: domain.CategoryEconomy, YesPrice: 61, Volume: 12345}, Heat: 4.5, Combined: 5.25},
		{Market: domain.Market{Ticker: "NBA-CHAMP", Title: "NBA champion", Category: domain.CategorySports, YesPrice: 20}, Heat: 1},
	}
	snap := domain.NewSnapshot(time.Now().Add(-time.Minute), hot, nil, hot, 42, 1)

	var buf bytes.Buffer
	printSnapshot(&buf, snap, 1)
	out := buf.String()

	for _, want := range []string{"42 articles", "1 feed error(s)", "FED-DEC-25", "12,345", "61¢", "Economy"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "NBA-CHAMP") {
		t.Errorf("limit not applied:\n%s", out)
	}
}

func TestPrintHistory(t *testing.T) {
	records := []domain.HeatRecord{
		{Ticker: "FED-DEC-25", YesPrice: 55, Volume: 1500000, OpenInterest: 2000, Heat: 3.14159, RecordedAt: time.Now().Add(-2 * time.Hour)},
	}

	var buf bytes.Buffer
	printHistory(&buf, records)
	out := buf.String()

	for _, want := range []string{"1,500,000", "2,000", "3.14", "hours ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintArticles(t *testing.T) {
	articles := []domain.ArticleRecord{
		{Link: "https://example.com/fed", Title: "Fed signals cuts", Source: "Econ Wire", FirstSeenAt: time.Now().Add(-3 * time.Hour)},
	}

	var buf bytes.Buffer
	printArticles(&buf, articles)
	out := buf.String()

	for _, want := range []string{"Econ Wire", "Fed signals cuts", "https://example.com/fed", "hours ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCheckHours(t *testing.T) {
	for _, hours := range []int{0, -1, 9999999} {
		if err := checkHours(hours); err == nil {
			t.Errorf("checkHours(%d) should fail", hours)
		}
	}
	if err := checkHours(24); err != nil {
		t.Errorf("checkHours(24) = %v", err)
	}
}
