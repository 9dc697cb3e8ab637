package simulator

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/rovshanmuradov/solana-router/internal/plan"
)

var (
	headerStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).Padding(0, 1)
	cellStyle       = lipgloss.NewStyle().Padding(0, 1)
	successStyle    = cellStyle.Foreground(lipgloss.Color("#04B575"))
	failedStyle     = cellStyle.Foreground(lipgloss.Color("#FF5F87"))
	unexpectedStyle = cellStyle.Bold(true).Foreground(lipgloss.Color("#FF0000"))
	titleStyle      = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	borderStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

var reportHeaders = []string{"STEP", "#", "ACTION", "WALLET", "STATUS", "ERROR", "SPENT", "OUT", "FEE", "NET", "CU", "OK"}

const statusColumn = 4

// Render draws the report as a table with amounts in UI units.
func Render(r *Report, p *plan.Plan) string {
	rows := make([][]string, 0, len(r.Results))
	for _, res := range r.Results {
		rows = append(rows, reportRow(res, p))
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(reportHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(r.Results) {
				return cellStyle
			}
			res := r.Results[row]
			switch {
			case !res.Expected:
				return unexpectedStyle
			case col == statusColumn && res.Status == StatusSuccess:
				return successStyle
			case col == statusColumn:
				return failedStyle
			}
			return cellStyle
		})

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(summary(r)),
		t.String(),
	)
}

func summary(r *Report) string {
	var ok, failed int
	for _, res := range r.Results {
		if res.Status == StatusSuccess {
			ok++
		} else {
			failed++
		}
	}
	return fmt.Sprintf("Route simulation: %d steps, %d committed, %d rejected, %d unexpected",
		len(r.Results), ok, failed, len(r.Unexpected()))
}

func reportRow(res StepResult, p *plan.Plan) []string {
	row := []string{
		res.Step,
		strconv.Itoa(res.Copy),
		string(res.Action),
		res.Wallet,
		string(res.Status),
		res.ErrorName,
		"", "", "", "",
		strconv.FormatUint(res.ComputeUnits, 10),
		"yes",
	}
	if res.Status == StatusFailed && res.ErrorName == "" && res.Err != nil {
		row[5] = res.Err.Error()
	}
	if !res.Expected {
		row[11] = "NO"
	}
	if res.Action == plan.ActionRoute && res.Status == StatusSuccess {
		inDecimals, outDecimals := decimalsOf(p, res.InMint), decimalsOf(p, res.OutMint)
		row[6] = formatAmount(res.Spent, inDecimals, res.InMint)
		row[7] = formatAmount(res.Out, outDecimals, res.OutMint)
		row[8] = formatAmount(res.Fee, outDecimals, res.OutMint)
		row[9] = formatAmount(res.Out-res.Fee, outDecimals, res.OutMint)
	}
	return row
}

func decimalsOf(p *plan.Plan, mint string) uint8 {
	if m, ok := p.MintByName(mint); ok {
		return m.Decimals
	}
	return 0
}

func formatAmount(units uint64, decimals uint8, mint string) string {
	return plan.FormatUnits(units, decimals) + " " + mint
}
