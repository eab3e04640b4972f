package bing

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

var (
	ErrSignedOut      = errors.New("not signed in to a rewards account")
	ErrPointsNotFound = errors.New("points balance not found")
)

const (
	counterSelector = "#id_rc"
	signInSelector  = "#id_s"
)

// ParseDesktopPoints reads the rewards counter of a Bing page.
func ParseDesktopPoints(html string) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, errors.WithStack(err)
	}

	counter := strings.TrimSpace(doc.Find(counterSelector).First().Text())
	if counter == "" {
		if doc.Find(signInSelector).Length() > 0 {
			return 0, errors.WithStack(ErrSignedOut)
		}

		return 0, errors.WithStack(ErrPointsNotFound)
	}

	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, counter)

	points, err := strconv.Atoi(digits)
	if err != nil {
		return 0, errors.Wrapf(ErrPointsNotFound, "unexpected counter value '%s'", counter)
	}

	return points, nil
}

// ParseMobilePoints reads the balance of the rewards user info payload.
func ParseMobilePoints(payload string) (int, error) {
	if !gjson.Valid(payload) {
		return 0, errors.Wrap(ErrPointsNotFound, "invalid user info payload")
	}

	balance := gjson.Get(payload, "userInfo.balance")
	if !balance.Exists() {
		if isRewardsUser := gjson.Get(payload, "userInfo.isRewardsUser"); isRewardsUser.Exists() && !isRewardsUser.Bool() {
			return 0, errors.WithStack(ErrSignedOut)
		}

		return 0, errors.WithStack(ErrPointsNotFound)
	}

	return int(balance.Int()), nil
}
