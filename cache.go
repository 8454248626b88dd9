package folio

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const listKey = "articles"

type articleSource interface {
	ListArticles(ctx context.Context) ([]Article, error)
	GetArticle(ctx context.Context, slug string) (Article, error)
}

// ArticleCache is a read-through TTL cache in front of the article table.
// Writers call Invalidate after every change.
type ArticleCache struct {
	src   articleSource
	items *gocache.Cache

	// gen counts invalidations. A load that straddles one is returned but
	// not stored.
	mu  sync.Mutex
	gen uint64
}

// NewArticleCache creates an ArticleCache reading from src.
func NewArticleCache(src articleSource, ttl time.Duration) *ArticleCache {
	return &ArticleCache{src: src, items: gocache.New(ttl, 2*ttl)}
}

// ListArticles returns all articles, newest first.
func (c *ArticleCache) ListArticles(ctx context.Context) ([]Article, error) {
	if v, ok := c.items.Get(listKey); ok {
		if articles, ok := v.([]Article); ok {
			return articles, nil
		}
	}
	gen := c.generation()
	articles, err := c.src.ListArticles(ctx)
	if err != nil {
		return nil, err
	}
	c.store(gen, listKey, articles)
	return articles, nil
}

// GetArticle returns one article by slug. Misses are not cached.
func (c *ArticleCache) GetArticle(ctx context.Context, slug string) (Article, error) {
	key := "slug:" + slug
	if v, ok := c.items.Get(key); ok {
		if a, ok := v.(Article); ok {
			return a, nil
		}
	}
	gen := c.generation()
	a, err := c.src.GetArticle(ctx, slug)
	if err != nil {
		return Article{}, err
	}
	c.store(gen, key, a)
	return a, nil
}

// Invalidate drops everything so the next read goes to the store.
func (c *ArticleCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.items.Flush()
}

func (c *ArticleCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *ArticleCache) store(gen uint64, key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.items.SetDefault(key, v)
	}
}
