package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// tasksStarted tracks tasks moved to running, per kind.
	tasksStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_tasks_started_total",
		Help: "Total number of tasks moved to running by kind",
	}, []string{"kind"})

	// tasksCompleted tracks tasks finished successfully, per kind.
	tasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_tasks_completed_total",
		Help: "Total number of tasks completed by kind",
	}, []string{"kind"})

	// tasksFailed tracks tasks that ended in the failed state, per kind.
	tasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_tasks_failed_total",
		Help: "Total number of tasks failed by kind",
	}, []string{"kind"})

	// urlsScraped tracks per-URL scrape attempts by result.
	urlsScraped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_urls_scraped_total",
		Help: "Total number of URL scrape attempts by result",
	}, []string{"result"}) // result: success, failed

	// emailsAttempted tracks per-recipient send attempts by result.
	emailsAttempted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_emails_attempted_total",
		Help: "Total number of campaign email attempts by result",
	}, []string{"result"}) // result: sent, skipped, failed

	// scrapeBatchSize tracks the distribution of URL batch sizes.
	scrapeBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "outreach_scrape_batch_urls_count",
		Help:    "Number of URLs in scraping task batches",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})
)
