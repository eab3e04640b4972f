package bing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bornholm/rewarder/pkg/attempt"
	"github.com/bornholm/rewarder/pkg/browser"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL = "https://www.bing.com"
	queryField     = "#sb_form_q"
	userInfoPath   = "/rewards/panelflyout/getuserinfo?channel=BingFlyout&partnerId=BingRewards"
)

// Search drives the Bing search page of a browser.
type Search struct {
	browser *browser.Browser
	baseURL string
}

func NewSearch(b *browser.Browser, baseURL string) *Search {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Search{
		browser: b,
		baseURL: baseURL,
	}
}

// Open navigates to the search home page.
func (s *Search) Open(ctx context.Context) error {
	slog.DebugContext(ctx, "opening search page", slog.String("url", s.baseURL))

	err := s.browser.Run(ctx,
		chromedp.Navigate(s.baseURL),
		chromedp.WaitVisible(queryField, chromedp.ByQuery),
	)
	if err != nil {
		return errors.Wrap(err, "could not open search page")
	}

	return nil
}

// TypeQuery implements attempt.SearchInterface.
func (s *Search) TypeQuery(ctx context.Context, text string) error {
	err := s.browser.Run(ctx,
		chromedp.WaitVisible(queryField, chromedp.ByQuery),
		chromedp.Clear(queryField, chromedp.ByQuery),
		chromedp.SendKeys(queryField, text, chromedp.ByQuery),
	)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// QueryValue implements attempt.SearchInterface.
func (s *Search) QueryValue(ctx context.Context) (string, error) {
	var value string

	if err := s.browser.Run(ctx, chromedp.Value(queryField, &value, chromedp.ByQuery)); err != nil {
		return "", errors.WithStack(err)
	}

	return value, nil
}

// Submit implements attempt.SearchInterface.
func (s *Search) Submit(ctx context.Context) error {
	err := s.browser.Run(ctx,
		chromedp.Submit(queryField, chromedp.ByQuery),
		chromedp.WaitReady("body"),
	)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Points implements attempt.SearchInterface.
func (s *Search) Points(ctx context.Context) (int, error) {
	if s.browser.Profile() == browser.ProfileMobile {
		return s.mobilePoints(ctx)
	}

	return s.desktopPoints(ctx)
}

func (s *Search) desktopPoints(ctx context.Context) (int, error) {
	err := s.browser.Run(ctx,
		chromedp.WaitReady(fmt.Sprintf("%s, %s", counterSelector, signInSelector), chromedp.ByQuery),
	)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	html, err := s.browser.OuterHTML(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	points, err := ParseDesktopPoints(html)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	return points, nil
}

func (s *Search) mobilePoints(ctx context.Context) (int, error) {
	var payload string

	script := fmt.Sprintf(`fetch(%q, { credentials: "include" }).then(res => res.text())`, s.baseURL+userInfoPath)

	err := s.browser.Run(ctx,
		chromedp.Evaluate(script, &payload, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return 0, errors.Wrap(err, "could not fetch rewards user info")
	}

	points, err := ParseMobilePoints(payload)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	return points, nil
}

var _ attempt.SearchInterface = &Search{}
