package browser

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"

	cu "github.com/Davincible/chromedp-undetected"
)

type Profile string

const (
	ProfileDesktop Profile = "desktop"
	ProfileMobile  Profile = "mobile"
)

const DefaultMobileUserAgent = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Mobile Safari/537.36"

type Options struct {
	Headless  bool
	Proxy     string
	UserAgent string
	Profile   Profile
	// Timeout bounds every Run call.
	Timeout time.Duration
}

type OptionFunc func(opts *Options)

func NewOptions(funcs ...OptionFunc) *Options {
	opts := &Options{
		Proxy:   os.Getenv("HTTP_PROXY"),
		Profile: ProfileDesktop,
		Timeout: time.Minute,
	}

	for _, fn := range funcs {
		fn(opts)
	}

	return opts
}

func WithHeadless(headless bool) OptionFunc {
	return func(opts *Options) {
		opts.Headless = headless
	}
}

func WithProxy(proxy string) OptionFunc {
	return func(opts *Options) {
		opts.Proxy = proxy
	}
}

func WithUserAgent(userAgent string) OptionFunc {
	return func(opts *Options) {
		opts.UserAgent = userAgent
	}
}

func WithProfile(profile Profile) OptionFunc {
	return func(opts *Options) {
		opts.Profile = profile
	}
}

func WithTimeout(timeout time.Duration) OptionFunc {
	return func(opts *Options) {
		opts.Timeout = timeout
	}
}

// Browser is a single undetected Chrome tab shared by every action.
type Browser struct {
	chromeCtx    context.Context
	cancelChrome context.CancelFunc
	opts         *Options
}

func New(ctx context.Context, funcs ...OptionFunc) (*Browser, error) {
	opts := NewOptions(funcs...)

	options := []cu.Option{}
	if opts.Headless {
		options = append(options, cu.WithHeadless())
	}

	if opts.Proxy != "" {
		options = append(options, cu.WithChromeFlags(chromedp.ProxyServer(opts.Proxy)))
	}

	userAgent := opts.UserAgent
	if userAgent == "" && opts.Profile == ProfileMobile {
		userAgent = DefaultMobileUserAgent
	}

	if userAgent != "" {
		options = append(options, cu.WithChromeFlags(chromedp.UserAgent(userAgent)))
	}

	chromeCtx, cancelChrome, err := cu.New(cu.NewConfig(options...))
	if err != nil {
		return nil, errors.Wrap(err, "could not launch browser")
	}

	b := &Browser{
		chromeCtx:    chromeCtx,
		cancelChrome: cancelChrome,
		opts:         opts,
	}

	if opts.Profile == ProfileMobile {
		slog.DebugContext(ctx, "emulating mobile device", slog.String("user_agent", userAgent))

		err := b.Run(ctx,
			emulation.SetUserAgentOverride(userAgent),
			emulation.SetDeviceMetricsOverride(412, 915, 2.625, true),
			emulation.SetTouchEmulationEnabled(true),
		)
		if err != nil {
			b.Close()
			return nil, errors.Wrap(err, "could not emulate mobile device")
		}
	}

	return b, nil
}

func (b *Browser) Profile() Profile {
	return b.opts.Profile
}

// Run executes actions in the browser tab. Cancelling ctx interrupts them.
func (b *Browser) Run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(b.chromeCtx, b.opts.Timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.WithStack(ctxErr)
		}

		return errors.WithStack(err)
	}

	return nil
}

// OuterHTML returns the HTML of the current document.
func (b *Browser) OuterHTML(ctx context.Context) (string, error) {
	var html string

	err := b.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return errors.WithStack(err)
			}

			res, err := dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			if err != nil {
				return errors.WithStack(err)
			}

			html = res

			return nil
		}),
	)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return html, nil
}

func (b *Browser) Close() {
	b.cancelChrome()
}
