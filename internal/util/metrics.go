package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PurchasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_purchases_total",
		Help: "Total number of completed purchases",
	})

	PurchasesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_purchases_failed_total",
		Help: "Total number of failed purchases",
	}, []string{"reason"})

	ItemsSoldTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_items_sold_total",
		Help: "Total number of stock items sold",
	}, []string{"product_code"})

	RevenueWLTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_revenue_wl_total",
		Help: "Total World Locks spent on purchases",
	})

	StockReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shop_stock_reserve_latency_seconds",
		Help:    "Latency of the purchase database transaction",
		Buckets: prometheus.DefBuckets,
	})

	StockAddedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_stock_added_total",
		Help: "Total number of stock items added",
	}, []string{"product_code"})

	StockCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_stock_cache_lookups_total",
		Help: "Stock count cache lookups by result",
	}, []string{"result"})

	DonationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_donations_total",
		Help: "Total number of donations received",
	})

	DonatedWLTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_donated_wl_total",
		Help: "Total World Locks credited by donations",
	})

	LiveStockRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_live_stock_refresh_total",
		Help: "Stock board refreshes by status",
	}, []string{"status"})

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_commands_total",
		Help: "Total number of bot commands handled",
	}, []string{"command", "status"})

	CommandLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bot_command_latency_seconds",
		Help:    "Latency of bot command handlers",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
