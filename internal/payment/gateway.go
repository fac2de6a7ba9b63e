package payment

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-vm-acceptance/internal/repository"
)

// GatewayResponse is the settlement outcome in the shape the external
// gateway would return.
type GatewayResponse struct {
	Status              repository.PaymentStatus `json:"status"`
	TransactionID       string                   `json:"transactionId"`
	Timestamp           time.Time                `json:"timestamp"`
	Amount              float64                  `json:"amount"`
	EstimatedSettlement *string                  `json:"estimatedSettlement,omitempty"`
	ErrorCode           *string                  `json:"errorCode,omitempty"`
	ErrorMessage        *string                  `json:"errorMessage,omitempty"`
}

// failureReason is one of the canned gateway failure modes.
type failureReason struct {
	code    string
	message string
}

var failureReasons = [5]failureReason{
	{"INSUFFICIENT_FUNDS", "Insufficient funds in the disbursement account"},
	{"ACCOUNT_BLOCKED", "Beneficiary account is blocked"},
	{"INVALID_ACCOUNT", "Beneficiary account number is invalid"},
	{"GATEWAY_TIMEOUT", "Payment gateway timed out"},
	{"NETWORK_ERROR", "Network error while contacting the bank"},
}

// GatewayConfig tunes the stub. Tests typically set zero delays and a
// seeded source.
type GatewayConfig struct {
	SuccessRate float64
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Source      rand.Source // nil seeds from the clock
}

// Gateway simulates the external payment gateway: a random processing
// delay, then success with the configured probability (0.95 in production
// config) or one of five canned failure reasons chosen uniformly.
type Gateway struct {
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration

	mu  sync.Mutex // rand.Rand is not safe for concurrent use
	rng *rand.Rand
}

// NewGateway creates a settlement stub.
func NewGateway(cfg GatewayConfig) *Gateway {
	src := cfg.Source
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Gateway{
		successRate: cfg.SuccessRate,
		minDelay:    cfg.MinDelay,
		maxDelay:    cfg.MaxDelay,
		rng:         rand.New(src),
	}
}

// Settle simulates one settlement attempt for the given amount.
func (g *Gateway) Settle(amount float64) *GatewayResponse {
	g.mu.Lock()
	delay := g.minDelay
	if g.maxDelay > g.minDelay {
		delay += time.Duration(g.rng.Int63n(int64(g.maxDelay - g.minDelay)))
	}
	roll := g.rng.Float64()
	pick := g.rng.Intn(len(failureReasons))
	g.mu.Unlock()

	time.Sleep(delay)

	now := time.Now()
	resp := &GatewayResponse{
		TransactionID: "TXN-" + uuid.NewString(),
		Timestamp:     now,
		Amount:        amount,
	}

	if roll < g.successRate {
		resp.Status = repository.PaymentSuccess
		settlement := now.AddDate(0, 0, 1).Format("2006-01-02")
		resp.EstimatedSettlement = &settlement
		return resp
	}

	reason := failureReasons[pick]
	resp.Status = repository.PaymentFailed
	resp.ErrorCode = &reason.code
	resp.ErrorMessage = &reason.message
	return resp
}
