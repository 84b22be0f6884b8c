package bank

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solopool_bank_transactions_processed_total", Help: "Transactions committed by the bank.",
	})
	TransactionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solopool_bank_transactions_failed_total", Help: "Transactions discarded after a failed instruction or a missing signature.",
	})
	InstructionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solopool_bank_instructions_executed_total", Help: "Instructions executed, by program id.",
	}, []string{"program"})
	EpochRewardsPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solopool_bank_epoch_rewards_lamports_total", Help: "Lamports compounded onto delegations as epoch rewards.",
	})
)
