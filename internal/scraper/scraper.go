// Package scraper reconstructs parking sessions and balances from the markup
// the portal driver hands back. The portal labels times in natural language
// ("vandaag 14:30", "Eindtijd 18 dec. 22:00"), so parsing is best-effort:
// fragments that can't be understood are skipped, never errors.
package scraper

import (
	"github.com/DanielTromp/bezoekersparkeren/internal/parking"
	"github.com/PuerkitoBio/goquery"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Parser extracts structured session records from portal markup.
type Parser struct {
	logger *slog.Logger
	clock  func() time.Time
}

func New(logger *slog.Logger) *Parser {
	return &Parser{logger: logger, clock: time.Now}
}

// Sessions extracts all parking sessions from a full page of markup, in
// document order. Fragments without a plate are skipped.
func (p *Parser) Sessions(markup string) []parking.Session {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		p.logger.Warn("failed to parse sessions page", "err", err)
		return nil
	}

	container := doc.Find("#parkActions")
	if container.Length() == 0 {
		return nil
	}

	var sessions []parking.Session
	container.Find("div.park-item-desktop").Each(func(_ int, item *goquery.Selection) {
		if session, ok := p.Session(item); ok {
			sessions = append(sessions, session)
		} else {
			p.logger.Debug("skipping unparsable session item")
		}
	})
	return sessions
}

// SessionFromFragment parses a standalone markup fragment holding one session
// item (and, optionally, its start-time sibling).
func (p *Parser) SessionFromFragment(fragment string) (parking.Session, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return parking.Session{}, false
	}
	item := doc.Find("div.park-item-desktop").First()
	if item.Length() == 0 {
		return parking.Session{}, false
	}
	return p.Session(item)
}

// Session parses a single session item. A missing plate field means the item
// is not a session; an unparsable start time falls back to the current time so
// that the record still gets an id.
func (p *Parser) Session(item *goquery.Selection) (parking.Session, bool) {
	plateElem := item.Find("span.plate").First()
	if plateElem.Length() == 0 {
		return parking.Session{}, false
	}
	plate := strings.TrimSpace(plateElem.Text())

	endTime := p.timeFromElement(item.Find("div.end-time").First())

	startElem := item.Find("div.start-time").First()
	if startElem.Length() == 0 {
		// some views put the start time in a later sibling row
		startElem = item.NextAllFiltered("div.start-time").First()
	}
	startTime := p.timeFromElement(startElem)

	if startTime == nil {
		now := p.clock()
		startTime = &now
	}

	return parking.Session{
		ID:        parking.SessionID(plate, *startTime),
		Plate:     plate,
		Active:    true,
		StartTime: startTime,
		EndTime:   endTime,
	}, true
}

func (p *Parser) timeFromElement(elem *goquery.Selection) *time.Time {
	if elem == nil || elem.Length() == 0 {
		return nil
	}
	if parsed, ok := p.parseTimeText(elem.Text()); ok {
		return &parsed
	}
	return nil
}

var fieldLabels = []string{"eindtijd", "start tijd", "start actie", "deze actie start", "verstreken", "product"}

var dutchMonths = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mrt": time.March,
	"apr": time.April, "mei": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"okt": time.October, "nov": time.November, "dec": time.December,
}

var (
	dayMonthRE = regexp.MustCompile(`(\d{1,2})\s+([a-z]{3})`)
	clockRE    = regexp.MustCompile(`(\d{1,2}:\d{2})`)
)

// parseTimeText resolves natural-language time text ("morgen 09:00",
// "vandaag 14:30", "18 dec. 22:00") to a timestamp. The date defaults to
// today; a month without a year is taken in the current year, rolling over to
// the next one only from December to January. ok is false when no clock time
// is present.
func (p *Parser) parseTimeText(text string) (time.Time, bool) {
	text = strings.ToLower(text)
	for _, label := range fieldLabels {
		text = strings.ReplaceAll(text, label, "")
	}

	now := p.clock()
	year, month, day := now.Date()

	switch {
	case strings.Contains(text, "morgen"):
		year, month, day = now.AddDate(0, 0, 1).Date()
		text = strings.ReplaceAll(text, "morgen", "")
	case strings.Contains(text, "vandaag"):
		text = strings.ReplaceAll(text, "vandaag", "")
	default:
		if m := dayMonthRE.FindStringSubmatch(text); m != nil {
			if parsedMonth, ok := dutchMonths[m[2]]; ok {
				day, _ = strconv.Atoi(m[1])
				month = parsedMonth
				if now.Month() == time.December && parsedMonth == time.January {
					year++
				}
				text = strings.Replace(text, m[0], "", 1)
			}
		}
	}

	m := clockRE.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	clock := strings.SplitN(m[1], ":", 2)
	hour, _ := strconv.Atoi(clock[0])
	minute, _ := strconv.Atoi(clock[1])

	return time.Date(year, month, day, hour, minute, 0, 0, now.Location()), true
}

// ParseBalance parses the portal's balance display, e.g. "€ 19,10".
func ParseBalance(value string) (parking.Balance, bool) {
	value = strings.TrimSpace(strings.ReplaceAll(value, "€", ""))
	value = strings.ReplaceAll(value, ",", ".")
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return parking.Balance{}, false
	}
	return parking.Balance{Amount: amount, Currency: "EUR"}, true
}
