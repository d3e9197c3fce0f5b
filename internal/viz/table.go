package viz

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/san-kum/stepsol/internal/integrators"
)

func num(v float64) string { return strconv.FormatFloat(v, 'g', 8, 64) }

// PredictionTable renders the state right after prediction: one row per
// DOF with the predicted X and X' and their values at the previous steps.
func PredictionTable(r integrators.PredictionReport) string {
	headers := []string{"dof", "x"}
	for i := range r.XPrev {
		headers = append(headers, fmt.Sprintf("x[-%d]", i+1))
	}
	headers = append(headers, "x'")
	for i := range r.XPrimePrev {
		headers = append(headers, fmt.Sprintf("x'[-%d]", i+1))
	}
	headers = append(headers, "description")

	rows := make([][]string, 0, len(r.X))
	for i := range r.X {
		row := []string{strconv.Itoa(i), num(r.X[i])}
		for _, prev := range r.XPrev {
			row = append(row, num(prev[i]))
		}
		row = append(row, num(r.XPrime[i]))
		for _, prev := range r.XPrimePrev {
			row = append(row, num(prev[i]))
		}
		desc := ""
		if i < len(r.Dofs) {
			desc = r.Dofs[i].Description
			if desc == "" {
				desc = r.Dofs[i].Order.String()
			}
		}
		rows = append(rows, append(row, desc))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(Subtle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			return CellStyle
		})

	return Title.Render(fmt.Sprintf("after prediction, t=%s", num(r.Time))) + "\n" + t.Render()
}
