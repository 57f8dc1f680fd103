package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"stock-autopilot/internal/autopilot/config"
	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/pkg/logger"
	"stock-autopilot/pkg/utils"

	"github.com/PuerkitoBio/goquery"
	"github.com/mauidude/go-readability"
	"github.com/mmcdole/gofeed"
	"github.com/patrickmn/go-cache"
)

// NewsDigestRepository collects recent headlines per symbol for the advisory
// prompt. A failed feed degrades to an empty digest, never an error, so news
// outages cannot block trading cycles.
type NewsDigestRepository interface {
	GetDigest(ctx context.Context, symbols []string) ([]dto.SymbolNews, error)
}

type newsDigestRepository struct {
	cfg        *config.Config
	log        *logger.Logger
	httpClient *http.Client
	feedParser *gofeed.Parser
	cache      *cache.Cache
}

// NewNewsDigestRepository creates an RSS backed news digest repository.
func NewNewsDigestRepository(cfg *config.Config, log *logger.Logger) NewsDigestRepository {
	cacheTTL := cfg.News.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	return &newsDigestRepository{
		cfg: cfg,
		log: log,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		feedParser: gofeed.NewParser(),
		cache:      cache.New(cacheTTL, 2*cacheTTL),
	}
}

func (r *newsDigestRepository) GetDigest(ctx context.Context, symbols []string) ([]dto.SymbolNews, error) {
	if !r.cfg.News.Enabled || len(symbols) == 0 {
		return nil, nil
	}

	maxConcurrent := r.cfg.News.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	digest := make([]dto.SymbolNews, 0, len(symbols))
	semaphore := make(chan struct{}, maxConcurrent)

	for _, symbol := range symbols {
		if !utils.ShouldContinue(ctx, r.log) {
			break
		}
		symbol := symbol
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			news := r.symbolNews(ctx, symbol)
			if len(news.Articles) == 0 {
				return
			}
			mu.Lock()
			digest = append(digest, news)
			mu.Unlock()
		})
	}

	wg.Wait()

	sort.Slice(digest, func(i, j int) bool {
		return digest[i].Symbol < digest[j].Symbol
	})

	return digest, nil
}

func (r *newsDigestRepository) symbolNews(ctx context.Context, symbol string) dto.SymbolNews {
	if cached, found := r.cache.Get(symbol); found {
		if news, ok := cached.(dto.SymbolNews); ok {
			return news
		}
	}

	news := dto.SymbolNews{Symbol: symbol}

	feedURL := fmt.Sprintf(r.cfg.News.FeedURL, symbol)
	r.log.DebugContext(ctx, "Processing RSS feed", logger.StringField("url", feedURL), logger.StringField("symbol", symbol))

	feed, err := r.feedParser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		r.log.WarnContext(ctx, "Failed to parse RSS feed", logger.ErrorField(err), logger.StringField("symbol", symbol))
		return news
	}

	sort.Slice(feed.Items, func(i, j int) bool {
		if feed.Items[i].PublishedParsed == nil || feed.Items[j].PublishedParsed == nil {
			return false
		}
		return feed.Items[i].PublishedParsed.After(*feed.Items[j].PublishedParsed)
	})

	maxArticles := r.cfg.News.MaxArticles
	if maxArticles <= 0 {
		maxArticles = 3
	}

	for _, item := range feed.Items {
		if len(news.Articles) >= maxArticles {
			break
		}
		if !utils.ShouldContinue(ctx, r.log) {
			break
		}

		article := dto.NewsItem{
			Title:       utils.CleanToValidUTF8(item.Title),
			PublishedAt: item.PublishedParsed,
		}
		if item.Link != "" {
			article.Source = item.Link
		}

		// Only the newest article gets full text extraction, the rest stay
		// headline-only to keep the prompt small.
		if len(news.Articles) == 0 && item.Link != "" {
			if snippet, err := r.extractSnippet(ctx, item.Link); err == nil {
				article.Snippet = snippet
			} else {
				r.log.DebugContext(ctx, "Failed to extract article text", logger.ErrorField(err), logger.StringField("url", item.Link))
			}
		}

		news.Articles = append(news.Articles, article)
	}

	if len(news.Articles) > 0 {
		r.cache.Set(symbol, news, cache.DefaultExpiration)
	}

	return news
}

func (r *newsDigestRepository) extractSnippet(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for news item: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch news content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch news content, status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	doc, err := readability.NewDocument(string(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse news content: %w", err)
	}
	docHTML, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(doc.Content())))
	if err != nil {
		return "", fmt.Errorf("failed to parse news content: %w", err)
	}

	content := utils.SafeText(strings.TrimSpace(docHTML.Text()))

	maxChars := r.cfg.News.SnippetMaxChars
	if maxChars <= 0 {
		maxChars = 500
	}
	if len(content) > maxChars {
		content = utils.CleanToValidUTF8(content[:maxChars]) + "..."
	}

	return content, nil
}
