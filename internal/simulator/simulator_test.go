package simulator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-router/internal/client"
	"github.com/rovshanmuradov/solana-router/internal/events"
	"github.com/rovshanmuradov/solana-router/internal/metrics"
	"github.com/rovshanmuradov/solana-router/internal/plan"
)

type sim struct {
	world  *World
	client *client.RouterClient
}

func newSim(t *testing.T, p *plan.Plan) *sim {
	t.Helper()
	logger := zaptest.NewLogger(t)
	l := NewLedger(logger)
	rc := client.NewRouterClient(client.New(l, logger, client.WithRetries(20, time.Millisecond)))
	w, err := BuildWorld(context.Background(), p, l, rc)
	require.NoError(t, err)
	return &sim{world: w, client: rc}
}

func (s *sim) balance(t *testing.T, wallet, mint string) uint64 {
	t.Helper()
	ata, err := s.world.Wallets[wallet].GetATA(s.world.Mints[mint])
	require.NoError(t, err)
	amount, err := s.client.TokenBalance(context.Background(), ata)
	require.NoError(t, err)
	return amount
}

func loadExample(t *testing.T) *plan.Plan {
	t.Helper()
	p, err := plan.NewManager(zap.NewNop()).Load(filepath.Join("..", "..", "configs", "plan.example.yaml"))
	require.NoError(t, err)
	return p
}

func TestRunExamplePlan(t *testing.T) {
	p := loadExample(t)
	s := newSim(t, p)

	bus := events.NewBus(zap.NewNop(), 64)
	collector := metrics.NewCollector()
	collector.Subscribe(bus)

	report, err := NewRunner(s.world, s.client, bus, zaptest.NewLogger(t), 3).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, bus.Shutdown(context.Background()))

	require.Len(t, report.Results, 11)
	assert.Empty(t, report.Unexpected())

	for i := 0; i < 4; i++ {
		res := report.Results[i]
		assert.Equal(t, "alice-direct", res.Step)
		assert.Equal(t, i+1, res.Copy)
		assert.Equal(t, StatusSuccess, res.Status)
		assert.Equal(t, uint64(450_000), res.Fee)
	}
	twoHop := report.Results[4]
	assert.Equal(t, StatusSuccess, twoHop.Status)
	assert.Equal(t, uint64(501_000_000_000), twoHop.Spent, "spent sums every leg's input")
	assert.Equal(t, uint64(448_500), twoHop.Fee)
	assert.Equal(t, "TooManyTokensSpent", report.Results[5].ErrorName)
	assert.Equal(t, "SlippageExceeded", report.Results[6].ErrorName)
	assert.Equal(t, "Paused", report.Results[8].ErrorName)

	assert.Equal(t, uint64(4*149_550_000), s.balance(t, "alice", "USDC"))
	assert.Equal(t, uint64(6_000_000_000), s.balance(t, "alice", "SOL"))
	assert.Equal(t, uint64(149_051_500), s.balance(t, "bob", "USDC"))
	assert.Equal(t, uint64(4_000_000_000), s.balance(t, "bob", "SOL"))
	assert.Zero(t, s.balance(t, "bob", "BONK"))
	assert.Equal(t, uint64(4*450_000+448_500), s.balance(t, "admin", "USDC"))

	cfg, err := s.client.FetchConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(50), cfg.FeeBps)
	assert.False(t, cfg.Paused)

	families, err := collector.Registry().Gather()
	require.NoError(t, err)
	byStatus := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "solana_router_routes_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "status" {
					byStatus[lp.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, map[string]float64{"success": 5, "failed": 3}, byStatus)
	n, err := testutil.GatherAndCount(collector.Registry(), "solana_router_fees_collected_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRenderReport(t *testing.T) {
	p := loadExample(t)
	s := newSim(t, p)

	report, err := NewRunner(s.world, s.client, nil, zap.NewNop(), 2).Run(context.Background())
	require.NoError(t, err)

	out := Render(report, p)
	assert.Contains(t, out, "alice-direct")
	assert.Contains(t, out, "SlippageExceeded")
	assert.Contains(t, out, "150.000000 USDC")
	assert.Contains(t, out, "0 unexpected")
}

func TestUnexpectedOutcomesAreFlagged(t *testing.T) {
	p, err := plan.Parse([]byte(`
admin: admin
fee_mint: USDC
mints: [{name: SOL, decimals: 9}, {name: USDC, decimals: 6}]
wallets:
  - name: admin
  - name: eve
    balances: {SOL: "1"}
pools:
  - {name: p, venue: solar_clmm, mint_a: SOL, mint_b: USDC, reserve_a: "10", reserve_b: "1000"}
steps:
  - name: should-fail-but-passes
    action: route
    wallet: eve
    max_in: "1"
    expect_error: SlippageExceeded
    legs: [{pool: p, amount_in: "0.5", amount_out: "50"}]
  - name: overspend
    action: route
    wallet: eve
    max_in: "0.1"
    legs: [{pool: p, amount_in: "0.5", amount_out: "50"}]
  - name: eve-is-not-admin
    action: pause
    wallet: eve
    expect_error: Unauthorized
`))
	require.NoError(t, err)
	s := newSim(t, p)

	report, err := NewRunner(s.world, s.client, nil, zap.NewNop(), 1).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 3)

	unexpected := report.Unexpected()
	require.Len(t, unexpected, 2)
	assert.Equal(t, "should-fail-but-passes", unexpected[0].Step)
	assert.Equal(t, "overspend", unexpected[1].Step)
	assert.Equal(t, "TooManyTokensSpent", unexpected[1].ErrorName)

	assert.True(t, report.Results[2].Expected)
	assert.Equal(t, "Unauthorized", report.Results[2].ErrorName)

	assert.Contains(t, Render(report, p), "2 unexpected")
}

func TestRouteStepsWithoutLegs(t *testing.T) {
	p, err := plan.Parse([]byte(`
admin: admin
fee_bps: 30
fee_mint: USDC
mints: [{name: SOL, decimals: 9}, {name: USDC, decimals: 6}]
wallets:
  - name: admin
  - name: eve
    balances: {SOL: "1"}
steps:
  - name: nothing-to-do
    action: route
    wallet: eve
    in: SOL
    out: USDC
  - name: nothing-but-wants-output
    action: route
    wallet: eve
    in: SOL
    out: USDC
    min_out: "0.000001"
    expect_error: SlippageExceeded
`))
	require.NoError(t, err)
	s := newSim(t, p)

	report, err := NewRunner(s.world, s.client, nil, zap.NewNop(), 2).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Empty(t, report.Unexpected())

	empty := report.Results[0]
	assert.Equal(t, StatusSuccess, empty.Status)
	assert.Zero(t, empty.Spent)
	assert.Zero(t, empty.Out)
	assert.Equal(t, "SOL", empty.InMint)
	assert.Equal(t, "USDC", empty.OutMint)

	assert.Equal(t, StatusFailed, report.Results[1].Status)
	assert.Equal(t, "SlippageExceeded", report.Results[1].ErrorName)
	assert.Equal(t, uint64(1_000_000_000), s.balance(t, "eve", "SOL"))
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	s := newSim(t, loadExample(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(s.world, s.client, nil, zap.NewNop(), 2).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestShutdownHandler(t *testing.T) {
	sh := NewShutdownHandler(zap.NewNop(), time.Second)

	var order []string
	boom := errors.New("boom")
	sh.AddFunc("first", func() error { order = append(order, "first"); return nil })
	sh.AddFunc("second", func() error { order = append(order, "second"); return boom })
	sh.AddFunc("third", func() error { order = append(order, "third"); return nil })

	err := sh.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "second")
	assert.Equal(t, []string{"third", "second", "first"}, order)

	assert.NoError(t, sh.Shutdown(context.Background()), "services are closed once")
}

func TestShutdownHandlerTimeout(t *testing.T) {
	sh := NewShutdownHandler(zap.NewNop(), 20*time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	sh.AddFunc("stuck", func() error { <-release; return nil })

	err := sh.Shutdown(context.Background())
	assert.ErrorContains(t, err, "stuck: shutdown timeout")
}
