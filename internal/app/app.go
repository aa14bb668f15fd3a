// Package app wires the pipeline end to end: load source lists, fetch and
// match candidates from feeds and scraped sites, filter against the seen
// history, deduplicate, summarize, render and deliver, then persist the
// delivered links.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/regwatch/telebrief/internal/cache"
	"github.com/regwatch/telebrief/internal/config"
	"github.com/regwatch/telebrief/internal/gemini"
	"github.com/regwatch/telebrief/internal/logger"
	"github.com/regwatch/telebrief/internal/mail"
	"github.com/regwatch/telebrief/internal/metrics"
	"github.com/regwatch/telebrief/internal/news"
	"github.com/regwatch/telebrief/internal/notify"
	"github.com/regwatch/telebrief/internal/ratelimit"
	"github.com/regwatch/telebrief/internal/render"
	"github.com/regwatch/telebrief/internal/retry"
	"github.com/regwatch/telebrief/internal/rss"
	"github.com/regwatch/telebrief/internal/scraper"
	"github.com/regwatch/telebrief/internal/sheets"
	"github.com/regwatch/telebrief/internal/storage"
	"github.com/regwatch/telebrief/internal/summary"
)

type sourceLoader interface {
	Load(ctx context.Context) (*sheets.Sources, error)
}

type feedFetcher interface {
	FetchAll(ctx context.Context, feeds []news.FeedSource, rules []news.KeywordRule, maxAgeDays int) ([]news.Article, rss.Stats)
}

type targetScraper interface {
	FetchAll(ctx context.Context, targets []news.ScrapeTarget, rules []news.KeywordRule) ([]news.Article, scraper.Stats)
}

type articleSummarizer interface {
	Summarize(ctx context.Context, articles []news.Article) ([]news.Article, error)
}

type digestMailer interface {
	Send(to []string, subject, htmlBody, textBody string) error
}

type digestSink interface {
	PutDigest(ctx context.Context, prefix string, date time.Time, html []byte) (string, error)
}

// App owns the pipeline collaborators for the lifetime of the process. In
// daemon mode one App serves every scheduled run, so the summary cache
// carries over between runs.
type App struct {
	cfg *config.Config

	sources  sourceLoader
	feeds    feedFetcher
	pages    targetScraper
	summ     articleSummarizer
	store    storage.Store
	digests  digestSink
	mailer   digestMailer
	notifier *notify.Notifier
	retryCfg retry.Config
	now      func() time.Time

	genClient    *gemini.Client
	summaryCache *cache.Cache
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	a := &App{
		cfg:      cfg,
		feeds:    rss.New(httpClient, cfg.UserAgent),
		pages:    scraper.New(httpClient, cfg.UserAgent, cfg.AcceptLanguage, cfg.ScrapeDelay),
		notifier: notify.New(cfg.TelegramToken, cfg.TelegramChatID),
		retryCfg: retry.Config{MaxAttempts: cfg.RetryAttempts, Delay: cfg.RetryDelay, Backoff: true},
		now:      time.Now,
	}

	if cfg.FeedsTabURL != "" {
		a.sources = tabSource{loader: sheets.NewLoader(httpClient), urls: sheets.TabURLs{
			Feeds:      cfg.FeedsTabURL,
			Keywords:   cfg.KeywordsTabURL,
			Recipients: cfg.RecipientsTabURL,
			Scrape:     cfg.ScrapeTabURL,
		}}
	} else {
		a.sources = fileSource{path: cfg.SourcesFile}
	}

	genClient, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("app: init generation client: %w", err)
	}
	a.genClient = genClient
	a.summaryCache = cache.New(cfg.SummaryCacheTTL)
	a.summ = summary.New(genClient, ratelimit.NewBudget(cfg.MaxGenRequests), a.summaryCache, cfg.BatchSize)

	if cfg.S3Configured() {
		s3Client, err := storage.NewClient(ctx, storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("app: init object store: %w", err)
		}
		a.store = storage.NewS3Store(s3Client, cfg.SeenObjectKey)
		if cfg.DigestPrefix != "" {
			a.digests = s3Client
		}
	} else {
		a.store = storage.NewFileStore(cfg.SeenFilePath)
	}

	if cfg.SMTPConfigured() {
		a.mailer = mail.New(mail.Options{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			TLSMode:  cfg.SMTPTLS,
		})
	}

	return a, nil
}

func (a *App) Close() {
	if a.genClient != nil {
		a.genClient.Close()
	}
	if a.summaryCache != nil {
		a.summaryCache.Stop()
	}
}

// Run executes one pipeline pass and posts the run report.
func (a *App) Run(ctx context.Context) error {
	started := a.now()
	logger.Info("pipeline run starting", "date", started.Format("2006-01-02"))

	report := notify.RunReport{Date: started}
	err := a.run(ctx, started, &report)

	report.Duration = a.now().Sub(started)
	report.Err = err
	metrics.Global.RecordRunDuration(report.Duration)
	if err != nil {
		metrics.Global.SetError(err.Error())
		logger.Error("pipeline run failed", "err", err, "duration", report.Duration)
	} else {
		metrics.Global.SetLastRun()
		logger.Info("pipeline run finished", "articles", report.Articles, "delivered", report.Delivered, "duration", report.Duration)
	}

	if nerr := a.notifier.Report(ctx, report); nerr != nil {
		logger.Warn("posting run report failed", "err", nerr)
	}
	return err
}

func (a *App) run(ctx context.Context, started time.Time, report *notify.RunReport) error {
	src, err := a.sources.Load(ctx)
	if err != nil {
		return fmt.Errorf("app: load sources: %w", err)
	}
	logger.Info("sources loaded",
		"feeds", len(src.Feeds), "targets", len(src.Targets),
		"keywords", len(src.Keywords), "recipients", len(src.Recipients))

	lookback := a.cfg.Lookback(started)

	feedArticles, feedStats := a.feeds.FetchAll(ctx, src.Feeds, src.Keywords, lookback)
	metrics.Global.AddFeedsFetched(feedStats.FeedsOK)
	metrics.Global.AddFeedFailures(feedStats.FeedsFailed)
	metrics.Global.AddFeedArticles(len(feedArticles))

	scraped, scrapeStats := a.pages.FetchAll(ctx, src.Targets, src.Keywords)
	metrics.Global.AddTargetsScraped(scrapeStats.TargetsOK)
	metrics.Global.AddScrapeFailures(scrapeStats.TargetsFailed)
	metrics.Global.AddScrapedArticles(len(scraped))

	// An unreachable seen store degrades to an empty history: the run
	// proceeds without cross-run suppression and skips the save.
	seen, version, err := a.store.Load(ctx)
	storeOK := err == nil
	if !storeOK {
		logger.Warn("seen store unreachable, proceeding without history", "err", err)
		seen, version = storage.NewSeenSet(), ""
	}

	fresh := make([]news.Article, 0, len(scraped))
	for _, art := range scraped {
		if !seen.Contains(art.Link) {
			fresh = append(fresh, art)
		}
	}
	metrics.Global.AddSeenFiltered(len(scraped) - len(fresh))

	merged := append(feedArticles, fresh...)
	unique := news.Dedupe(merged)
	metrics.Global.AddDuplicatesFiltered(len(merged) - len(unique))
	logger.Info("candidates selected",
		"from_feeds", len(feedArticles), "from_scrape", len(fresh),
		"after_dedup", len(unique), "lookback_days", lookback)

	enriched, err := a.summ.Summarize(ctx, unique)
	if err != nil {
		return fmt.Errorf("app: summarize: %w", err)
	}

	report.Articles = len(enriched)
	for _, art := range enriched {
		if art.Type == news.TypeScraped {
			report.FromScrape++
		} else {
			report.FromFeeds++
		}
	}

	renderer := render.New(a.cfg.GroupOrder, keywordList(src.Keywords))
	html, err := renderer.HTML(enriched, started)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	text := renderer.Text(enriched, started)
	subject := render.Subject(started)

	delivered, err := a.deliver(ctx, started, src.Recipients, subject, html, text)
	if err != nil {
		return err
	}
	report.Delivered = delivered

	if !delivered {
		return nil
	}
	if !storeOK {
		logger.Warn("seen store unavailable, delivered links not persisted")
		return nil
	}

	links := make([]string, len(enriched))
	for i, art := range enriched {
		links[i] = art.Link
	}
	if err := storage.SaveMerged(ctx, a.store, seen, version, links, a.cfg.RetryAttempts); err != nil {
		// The digest is already out; failing the run now would only
		// cause a duplicate send next time.
		logger.Error("persisting seen links failed", "err", err)
	}
	return nil
}

// deliver sends the digest over every configured channel. The run counts
// as delivered when at least one channel succeeds; it fails only when all
// attempted channels fail.
func (a *App) deliver(ctx context.Context, date time.Time, recipients []string, subject, html, text string) (bool, error) {
	attempted := 0
	delivered := false
	var failures []error

	if a.mailer != nil {
		if len(recipients) == 0 {
			logger.Warn("smtp configured but no recipients loaded, skipping email")
		} else {
			attempted++
			err := retry.WithRetry(ctx, a.retryCfg, func() error {
				return a.mailer.Send(recipients, subject, html, text)
			})
			if err != nil {
				metrics.Global.IncrementDeliveryFailures()
				failures = append(failures, err)
				logger.Error("email delivery failed", "err", err)
			} else {
				delivered = true
				metrics.Global.IncrementDigestsSent()
				logger.Info("digest emailed", "recipients", len(recipients))
			}
		}
	}

	if a.digests != nil {
		attempted++
		var key string
		err := retry.WithRetry(ctx, a.retryCfg, func() error {
			var perr error
			key, perr = a.digests.PutDigest(ctx, a.cfg.DigestPrefix, date, []byte(html))
			return perr
		})
		if err != nil {
			metrics.Global.IncrementDeliveryFailures()
			failures = append(failures, err)
			logger.Error("digest upload failed", "err", err)
		} else {
			delivered = true
			metrics.Global.IncrementDigestsSent()
			logger.Info("digest uploaded", "key", key)
		}
	}

	if attempted == 0 {
		logger.Warn("no delivery channel available for this run")
		return false, nil
	}
	if !delivered {
		return false, fmt.Errorf("app: delivery failed: %w", errors.Join(failures...))
	}
	return true, nil
}

func keywordList(rules []news.KeywordRule) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Keyword)
	}
	return out
}

type tabSource struct {
	loader *sheets.Loader
	urls   sheets.TabURLs
}

func (t tabSource) Load(ctx context.Context) (*sheets.Sources, error) {
	return t.loader.LoadTabs(ctx, t.urls)
}

type fileSource struct {
	path string
}

func (f fileSource) Load(ctx context.Context) (*sheets.Sources, error) {
	return sheets.LoadFile(f.path)
}
