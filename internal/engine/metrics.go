package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatbot",
		Subsystem: "engine",
		Name:      "turns_total",
		Help:      "Conversation turns processed, labeled by routing outcome.",
	}, []string{"outcome"})

	handoffsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatbot",
		Subsystem: "engine",
		Name:      "handoffs_total",
		Help:      "Sessions handed off to a human operator.",
	})

	negativityTripsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatbot",
		Subsystem: "engine",
		Name:      "negativity_trips_total",
		Help:      "Hand-offs forced by the negativity threshold.",
	})

	ordersFinalizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatbot",
		Subsystem: "engine",
		Name:      "orders_finalized_total",
		Help:      "Orders finalized with a complete customer record.",
	})

	sweeperResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatbot",
		Subsystem: "engine",
		Name:      "sweeper_resets_total",
		Help:      "Expired hand-off sessions reset to idle by the sweeper.",
	})

	oracleFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatbot",
		Subsystem: "engine",
		Name:      "oracle_fallbacks_total",
		Help:      "Oracle calls recovered by the deterministic fallback.",
	})
)

// Turn outcome labels.
const (
	outcomeDisabled     = "disabled"
	outcomeReset        = "reset"
	outcomeSilenced     = "silenced"
	outcomeWaitingHuman = "waiting_human"
	outcomeImage        = "image"
	outcomeConfirmation = "confirmation"
	outcomeCustomerInfo = "customer_info"
	outcomeNegativity   = "negativity"
	outcomeStoreInfo    = "store_info"
	outcomeHandover     = "handover"
	outcomeAddition     = "addition"
	outcomePurchase     = "purchase"
	outcomeShowMore     = "show_more"
	outcomeSearch       = "search"
)
