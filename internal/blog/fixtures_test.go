package blog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/JakeFAU/blogharvest/internal/harvest"
)

const indexHTML = `<html><body>
<div id="main">
  <div class="et_pb_salvattore_content">
    <article class="et_pb_post">
      <h2 class="entry-title"><a href="https://example.org/blog/first-post/">First Post</a></h2>
      <p class="post-meta"><span class="published">Jan 2, 2020</span> | <a href="/category/news/" rel="category tag">News</a>, <a href="/category/events/" rel="category tag">Events</a></p>
    </article>
    <article class="et_pb_post">
      <h2 class="entry-title"><a href="/blog/second-post/">Second
         Post</a></h2>
      <p class="post-meta"><span class="published">Feb 10, 2021</span></p>
    </article>
    <article class="et_pb_post">
      <h2 class="entry-title">Draft without link</h2>
    </article>
  </div>
  <div class="pagination">
    <div class="alignleft"><a href="/blog/page/2/">« Older Entries</a></div>
    <div class="alignright"><a href="/blog/">Next Entries »</a></div>
  </div>
</div>
</body></html>`

const lastIndexHTML = `<html><body>
<div class="et_pb_salvattore_content">
  <article><h2><a href="/blog/oldest-post/">Oldest</a></h2><p class="post-meta"><span class="published">Mar 3, 2015</span></p></article>
</div>
<div class="pagination"><a href="/blog/page/2/">Next Entries »</a></div>
</body></html>`

const emptyIndexHTML = `<html><body>
<div class="et_pb_salvattore_content"></div>
<a href="/blog/page/9/">« Older Entries</a>
</body></html>`

const malformedIndexHTML = `<html><body>
<div class="maintenance">We'll be back soon.</div>
<a href="/blog/page/4/">« Older Entries</a>
</body></html>`

const detailHTML = `<html><body>
<h1 class="entry-title">First Post (detail)</h1>
<p class="post-meta"><span class="published">Jan 2, 2020</span> <a href="/tag/x/" rel="tag">Detail Tag</a></p>
<div class="et_pb_row et_pb_row_2_tb_body">
   <p>Hello readers.</p>
   <p>Second paragraph.</p>
</div>
</body></html>`

const detailNoBodyHTML = `<html><body><h1 class="entry-title">Stub</h1></body></html>`

type fakeFetcher struct {
	mu        sync.Mutex
	pages     map[string]harvest.Page
	failures  map[string]error
	redirects map[string]string
	calls     []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (harvest.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.failures[url]; ok {
		return harvest.Page{}, err
	}
	final := url
	if to, ok := f.redirects[url]; ok {
		final = to
	}
	page, ok := f.pages[final]
	if !ok {
		return harvest.Page{}, &harvest.FetchError{URL: url, StatusCode: 404, Err: errors.New("Not Found")}
	}
	page.RequestedURL = url
	page.URL = final
	page.StatusCode = 200
	return page, nil
}

type testHasher struct{}

func (testHasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func identityOf(link string) string {
	id, _, err := harvest.DeriveIdentity(testHasher{}, link)
	if err != nil {
		panic(err)
	}
	return id
}
