package login

import (
	"net/url"
	"sync"
)

// Page is the surface a login evaluation runs against: the URL the page was
// loaded with, a way to leave for another location, and a way to rewrite the
// visible address without leaving.
type Page interface {
	// URL returns the URL the page was loaded with.
	URL() *url.URL

	// Navigate leaves the page for target. Control does not come back to
	// the evaluation; the next page load starts from the session store.
	Navigate(target string) error

	// ReplaceURL rewrites the visible address to u without a reload.
	ReplaceURL(u *url.URL)
}

// StaticPage is a Page over a fixed URL. It records navigation and address
// rewrites instead of performing them. The callback server uses one per
// request and renders what was recorded.
type StaticPage struct {
	mu         sync.Mutex
	url        *url.URL
	navigated  string
	replaced   *url.URL
	navigateFn func(target string) error
}

// NewStaticPage creates a page loaded with u. If navigate is non-nil it is
// called for every navigation after the target is recorded.
func NewStaticPage(u *url.URL, navigate func(target string) error) *StaticPage {
	return &StaticPage{url: u, navigateFn: navigate}
}

// URL returns the URL the page was loaded with.
func (p *StaticPage) URL() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := *p.url
	return &u
}

// Navigate records target and forwards it to the navigate callback.
func (p *StaticPage) Navigate(target string) error {
	p.mu.Lock()
	p.navigated = target
	fn := p.navigateFn
	p.mu.Unlock()

	if fn != nil {
		return fn(target)
	}
	return nil
}

// ReplaceURL records u as the visible address.
func (p *StaticPage) ReplaceURL(u *url.URL) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replaced = u
}

// NavigatedTo returns the last navigation target, or "" if none.
func (p *StaticPage) NavigatedTo() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.navigated
}

// ReplacedURL returns the rewritten address, or nil if it was not rewritten.
func (p *StaticPage) ReplacedURL() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.replaced
}
