package treasury

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	xerrors "DustMite-Agent/internal/errors"
	"DustMite-Agent/internal/events"
	"DustMite-Agent/internal/knowledge"
	"DustMite-Agent/internal/llm"
	"DustMite-Agent/internal/market"
	"DustMite-Agent/internal/observability/alerting"
	"DustMite-Agent/internal/storage/mysql"
	"DustMite-Agent/internal/wallet"
	"DustMite-Agent/internal/web3"

	"github.com/ethereum/go-ethereum/common"
)

type fakeWalletService struct {
	wallet       wallet.Wallet
	ensureErr    error
	ensureCalls  int
	transferErr  error
	transferSeen []wallet.TransferRequest
	txID         string
}

func (f *fakeWalletService) EnsureWallet(_ context.Context) (*wallet.Wallet, error) {
	f.ensureCalls++
	if f.ensureErr != nil {
		return nil, f.ensureErr
	}
	w := f.wallet
	return &w, nil
}

func (f *fakeWalletService) Transfer(_ context.Context, req wallet.TransferRequest) (string, error) {
	f.transferSeen = append(f.transferSeen, req)
	if f.transferErr != nil {
		return "", f.transferErr
	}
	return f.txID, nil
}

type fakeChain struct {
	balance *big.Int
	readErr error
}

func (f *fakeChain) TokenBalance(_ context.Context, _, _ common.Address) (*big.Int, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeChain) FetchChainSnapshot(_ context.Context) (web3.ChainSnapshot, error) {
	return web3.ChainSnapshot{}, nil
}

func (f *fakeChain) Close() {}

type fakeMarket struct {
	quote market.YieldQuote
	err   error
	calls int
}

func (f *fakeMarket) GetYield(_ context.Context) (market.YieldQuote, error) {
	f.calls++
	if f.err != nil {
		return market.YieldQuote{}, f.err
	}
	return f.quote, nil
}

type fakeBrain struct {
	decision    *llm.Decision
	decideErr   error
	decideCalls int
	lastDecide  llm.DecisionRequest
	answer      string
	explainErr  error
}

func (f *fakeBrain) Decide(_ context.Context, req llm.DecisionRequest) (*llm.Decision, error) {
	f.decideCalls++
	f.lastDecide = req
	if f.decideErr != nil {
		return nil, f.decideErr
	}
	return f.decision, nil
}

func (f *fakeBrain) Explain(_ context.Context, _ string, _ []llm.HistoryEntry) (string, error) {
	if f.explainErr != nil {
		return "", f.explainErr
	}
	return f.answer, nil
}

type recordingDispatcher struct {
	events []alerting.Event
}

func (r *recordingDispatcher) Notify(_ context.Context, event alerting.Event) error {
	r.events = append(r.events, event)
	return nil
}

type testHarness struct {
	agent     *Agent
	wallets   *fakeWalletService
	chain     *fakeChain
	market    *fakeMarket
	brain     *fakeBrain
	audit     *mysql.MemoryAuditRepository
	publisher *events.MemoryPublisher
	alerts    *recordingDispatcher
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	walletSvc := &fakeWalletService{
		wallet: wallet.Wallet{
			ProviderWalletID: "wallet-1",
			Address:          "0x00000000000000000000000000000000deadbeef",
			Blockchain:       "ETH-SEPOLIA",
		},
		txID: "tx-1",
	}
	chain := &fakeChain{balance: big.NewInt(0)}
	marketSrc := &fakeMarket{quote: market.YieldQuote{APY: 7.5, Source: "MockMarket"}}
	brain := &fakeBrain{decision: &llm.Decision{Action: "BUY", Reason: "yield beats gas"}, answer: "because yield"}

	audit, err := mysql.NewMemoryAuditRepository(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	walletRepo, err := mysql.NewMemoryWalletRepository(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := walletRepo.Save(context.Background(), mysql.WalletRecord{
		ProviderWalletID: "wallet-1",
		Address:          "0x00000000000000000000000000000000deadbeef",
		Blockchain:       "ETH-SEPOLIA",
		CreatedAt:        1700000000,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	publisher := events.NewMemoryPublisher()
	alerts := &recordingDispatcher{}

	policies := knowledge.NewStaticProvider([]knowledge.Snippet{
		{Title: "收益与成本", Content: "yield must beat gas", Keywords: []string{"yield"}},
		{Title: "保守优先", Content: "hold when unsure"},
	}, 3)

	agent, err := NewAgent(Config{
		DustThreshold:      1.0,
		GasCostEstimateUSD: 0.05,
		TokenAddress:       "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
		TokenDecimals:      6,
		YieldTokenAddress:  "0x38547D918b9645F2D94336B6b61AEB08053E142c",
		PolicyTopics:       []string{"yield optimization"},
	}, Dependencies{
		Provisioner: walletSvc,
		Transfers:   walletSvc,
		Chain:       chain,
		Market:      marketSrc,
		Brain:       brain,
		Audit:       audit,
		Wallets:     walletRepo,
		Publisher:   publisher,
		Alerts:      alerts,
		Policies:    policies,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return &testHarness{
		agent:     agent,
		wallets:   walletSvc,
		chain:     chain,
		market:    marketSrc,
		brain:     brain,
		audit:     audit,
		publisher: publisher,
		alerts:    alerts,
	}
}

func TestRunCycleSkipsDust(t *testing.T) {
	h := newTestHarness(t)
	h.chain.balance = big.NewInt(500000) // 0.5 USDC

	report, err := h.agent.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Outcome != OutcomeSkippedDust {
		t.Fatalf("unexpected outcome: %q", report.Outcome)
	}
	if report.Amount != "0.5" {
		t.Fatalf("unexpected amount: %q", report.Amount)
	}

	// Dust cycles are not recorded in the audit trail.
	records, err := h.audit.ListLatest(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no audit records, got %d", len(records))
	}
	if len(h.wallets.transferSeen) != 0 {
		t.Fatalf("no transfer expected for dust balance")
	}

	// A dust skip ends the cycle before any downstream collaborator runs.
	if h.market.calls != 0 {
		t.Fatalf("dust skip must not fetch market data, got %d calls", h.market.calls)
	}
	if h.brain.decideCalls != 0 {
		t.Fatalf("dust skip must not consult the decision engine, got %d calls", h.brain.decideCalls)
	}
}

func TestRunCycleBuysWhenProfitable(t *testing.T) {
	h := newTestHarness(t)
	h.chain.balance = big.NewInt(1000_000000) // 1000 USDC
	h.market.quote = market.YieldQuote{APY: 7.5, Source: "MockMarket"}

	report, err := h.agent.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Outcome != OutcomeCompleted {
		t.Fatalf("unexpected outcome: %q", report.Outcome)
	}
	if report.Action != ActionBuy {
		t.Fatalf("expected BUY, got %q", report.Action)
	}
	if report.Amount != "1000" {
		t.Fatalf("unexpected amount: %q", report.Amount)
	}
	if report.TxHash == nil || *report.TxHash != "tx-1" {
		t.Fatalf("tx hash missing from report: %v", report.TxHash)
	}
	if report.SentimentScore != 0.8 {
		t.Fatalf("unexpected sentiment: %v", report.SentimentScore)
	}

	if len(h.wallets.transferSeen) != 1 {
		t.Fatalf("expected exactly one transfer, got %d", len(h.wallets.transferSeen))
	}
	transfer := h.wallets.transferSeen[0]
	if transfer.Amount != "1000" {
		t.Fatalf("transfer amount mismatch: %q", transfer.Amount)
	}
	if transfer.Destination != "0x38547D918b9645F2D94336B6b61AEB08053E142c" {
		t.Fatalf("transfer destination mismatch: %q", transfer.Destination)
	}

	records, err := h.audit.ListLatest(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Action != ActionBuy {
		t.Fatalf("audit record missing or wrong: %+v", records)
	}
	if records[0].TxHash == nil || *records[0].TxHash != "tx-1" {
		t.Fatalf("audit tx hash mismatch: %v", records[0].TxHash)
	}

	published := h.publisher.Events()
	if len(published) != 1 || published[0].Action != ActionBuy {
		t.Fatalf("cycle event missing or wrong: %+v", published)
	}
}

func TestRunCycleSendsPolicyCardsToBrain(t *testing.T) {
	h := newTestHarness(t)
	h.chain.balance = big.NewInt(1000_000000)

	if _, err := h.agent.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cards := h.brain.lastDecide.Policies
	if len(cards) != 2 {
		t.Fatalf("expected both policy cards in the decision request, got %d", len(cards))
	}
	if cards[0].Title != "收益与成本" {
		t.Fatalf("keyworded policy card missing: %+v", cards)
	}
}

func TestRunCycleHoldsWhenUnprofitable(t *testing.T) {
	h := newTestHarness(t)
	// 100 USDC at 7.5%: daily yield ~$0.02 does not beat $0.05 gas,
	// so even a BUY advice must not execute.
	h.chain.balance = big.NewInt(100_000000)

	report, err := h.agent.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Action != ActionHold {
		t.Fatalf("expected HOLD, got %q", report.Action)
	}
	if report.Amount != "100" {
		t.Fatalf("unexpected amount: %q", report.Amount)
	}
	if report.TxHash != nil {
		t.Fatalf("unexpected tx hash: %v", report.TxHash)
	}
	if len(h.wallets.transferSeen) != 0 {
		t.Fatalf("no transfer expected when unprofitable")
	}

	records, err := h.audit.ListLatest(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Action != ActionHold {
		t.Fatalf("audit record missing or wrong: %+v", records)
	}
}

func TestRunCycleTreatsBalanceReadFailureAsZero(t *testing.T) {
	h := newTestHarness(t)
	h.chain.readErr = errors.New("rpc down")

	report, err := h.agent.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Outcome != OutcomeSkippedDust {
		t.Fatalf("read failure should degrade to dust skip, got %q", report.Outcome)
	}
	if report.Amount != "0" {
		t.Fatalf("unexpected amount: %q", report.Amount)
	}
}

func TestRunCycleProvisioningFailureAborts(t *testing.T) {
	h := newTestHarness(t)
	h.wallets.ensureErr = xerrors.New(xerrors.CodeProvisioningFailure, "provider down")

	_, err := h.agent.RunCycle(context.Background())
	if err == nil {
		t.Fatalf("expected error when provisioning fails")
	}
	if xerrors.CodeOf(err) != xerrors.CodeProvisioningFailure {
		t.Fatalf("unexpected code: %v", xerrors.CodeOf(err))
	}
	if len(h.alerts.events) == 0 {
		t.Fatalf("provisioning failure must raise an alert")
	}
}

func TestRunCycleMarketFailureAborts(t *testing.T) {
	h := newTestHarness(t)
	h.chain.balance = big.NewInt(1000_000000)
	h.market.err = errors.New("feed down")

	_, err := h.agent.RunCycle(context.Background())
	if err == nil {
		t.Fatalf("expected error when market data fails")
	}
	if xerrors.CodeOf(err) != xerrors.CodeMarketDataFailure {
		t.Fatalf("unexpected code: %v", xerrors.CodeOf(err))
	}

	records, _ := h.audit.ListLatest(context.Background(), 10)
	if len(records) != 0 {
		t.Fatalf("failed cycle must not write audit records, got %d", len(records))
	}
}

func TestRunCycleDecisionFailureHolds(t *testing.T) {
	h := newTestHarness(t)
	h.chain.balance = big.NewInt(1000_000000)
	h.brain.decideErr = errors.New("model timeout")

	report, err := h.agent.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("decision failure must not abort the cycle: %v", err)
	}
	if report.Action != ActionHold {
		t.Fatalf("expected HOLD, got %q", report.Action)
	}
	if !strings.Contains(report.Reason, "model timeout") {
		t.Fatalf("reason should carry the failure: %q", report.Reason)
	}
	if len(h.wallets.transferSeen) != 0 {
		t.Fatalf("no transfer expected after decision failure")
	}
}

func TestRunCycleExecutionFailureHoldsWithAlert(t *testing.T) {
	h := newTestHarness(t)
	h.chain.balance = big.NewInt(1000_000000)
	h.wallets.transferErr = xerrors.New(xerrors.CodeExecutionFailure, "insufficient gas")

	report, err := h.agent.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("execution failure must not abort the cycle: %v", err)
	}
	if report.Action != ActionHold {
		t.Fatalf("expected HOLD after failed transfer, got %q", report.Action)
	}
	if report.TxHash != nil {
		t.Fatalf("failed transfer must not record a tx hash")
	}
	if report.Reason != "yield beats gas" {
		t.Fatalf("original decision reason must be preserved: %q", report.Reason)
	}

	records, err := h.audit.ListLatest(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Action != ActionHold || records[0].TxHash != nil {
		t.Fatalf("audit record wrong after execution failure: %+v", records)
	}

	if len(h.alerts.events) == 0 {
		t.Fatalf("execution failure must raise an alert")
	}
	if h.alerts.events[0].Code != xerrors.CodeExecutionFailure {
		t.Fatalf("unexpected alert code: %v", h.alerts.events[0].Code)
	}
}

func TestStatusDegradesBalanceOnReadFailure(t *testing.T) {
	h := newTestHarness(t)
	h.chain.readErr = errors.New("rpc down")

	status, err := h.agent.Status(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Balance != "0" {
		t.Fatalf("balance should degrade to 0, got %q", status.Balance)
	}
	if status.WalletAddress != "0x00000000000000000000000000000000deadbeef" {
		t.Fatalf("unexpected wallet address: %q", status.WalletAddress)
	}
}

func TestStatusListsRecentActivity(t *testing.T) {
	h := newTestHarness(t)
	h.chain.balance = big.NewInt(250_000000)

	for i := 0; i < 7; i++ {
		if err := h.audit.Append(context.Background(), mysql.CycleRecord{
			Timestamp: int64(i), Action: ActionHold, Amount: "250", Reason: "r",
		}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	status, err := h.agent.Status(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(status.LastActivity) != 5 {
		t.Fatalf("expected 5 activity records, got %d", len(status.LastActivity))
	}
	if status.Balance != "250" {
		t.Fatalf("unexpected balance: %q", status.Balance)
	}
}

func TestChatUsesRecentHistory(t *testing.T) {
	h := newTestHarness(t)
	h.brain.answer = "I held because gas exceeded the daily yield."

	answer, err := h.agent.Chat(context.Background(), "why did you hold?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != h.brain.answer {
		t.Fatalf("unexpected answer: %q", answer)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.agent.Chat(context.Background(), "  ")
	if err == nil {
		t.Fatalf("expected error for empty message")
	}
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("unexpected code: %v", xerrors.CodeOf(err))
	}
}

func TestChatFallsBackWhenModelUnavailable(t *testing.T) {
	h := newTestHarness(t)
	h.brain.explainErr = errors.New("model down")

	answer, err := h.agent.Chat(context.Background(), "what happened?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != chatFallbackReply {
		t.Fatalf("expected fallback reply, got %q", answer)
	}
}
