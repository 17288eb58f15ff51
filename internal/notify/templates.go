package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"

	"spendwise/internal/models"
)

// BudgetAlert is the data of a budget alert email.
type BudgetAlert struct {
	UserName       string
	AccountName    string
	PercentageUsed decimal.Decimal
	BudgetAmount   decimal.Decimal
	TotalExpenses  decimal.Decimal
}

// MonthlyReport is the data of a monthly report email.
type MonthlyReport struct {
	UserName string
	Stats    *models.MonthlyStats
	Insights []string
}

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"pct":   func(d decimal.Decimal) string { return d.StringFixed(1) },
}

var budgetAlertTmpl = template.Must(template.New("budget-alert").Funcs(funcs).Parse(`<!DOCTYPE html>
<html><body>
<h1>Budget Alert</h1>
<p>Hello {{.UserName}},</p>
<p>You have used <strong>{{pct .PercentageUsed}}%</strong> of your monthly budget on {{.AccountName}}.</p>
<table>
<tr><td>Budget</td><td>{{money .BudgetAmount}}</td></tr>
<tr><td>Spent so far</td><td>{{money .TotalExpenses}}</td></tr>
<tr><td>Remaining</td><td>{{money (.BudgetAmount.Sub .TotalExpenses)}}</td></tr>
</table>
</body></html>`))

var monthlyReportTmpl = template.Must(template.New("monthly-report").Funcs(funcs).Parse(`<!DOCTYPE html>
<html><body>
<h1>Monthly Financial Report</h1>
<p>Hello {{.UserName}},</p>
<p>Here is your financial summary for {{.Stats.Period}}.</p>
<table>
<tr><td>Total income</td><td>{{money .Stats.TotalIncome}}</td></tr>
<tr><td>Total expenses</td><td>{{money .Stats.TotalExpenses}}</td></tr>
<tr><td>Net</td><td>{{money .Stats.Net}}</td></tr>
<tr><td>Transactions</td><td>{{.Stats.TransactionCount}}</td></tr>
</table>
{{with .Stats.SortedCategories}}<h2>Expenses by category</h2>
<ul>{{range .}}<li>{{.Category}}: {{money .Total}}</li>{{end}}</ul>{{end}}
{{with .Insights}}<h2>Insights</h2>
<ul>{{range .}}<li>{{.}}</li>{{end}}</ul>{{end}}
</body></html>`))

// RenderBudgetAlert renders the alert email for to.
func RenderBudgetAlert(to string, data BudgetAlert) (Message, error) {
	var buf bytes.Buffer
	if err := budgetAlertTmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("rendering budget alert: %w", err)
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Budget Alert for %s", data.AccountName),
		HTML:    buf.String(),
	}, nil
}

// RenderMonthlyReport renders the monthly report email for to.
func RenderMonthlyReport(to string, data MonthlyReport) (Message, error) {
	if data.Stats == nil {
		return Message{}, fmt.Errorf("rendering monthly report: missing stats")
	}
	var buf bytes.Buffer
	if err := monthlyReportTmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("rendering monthly report: %w", err)
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your Monthly Financial Report - %s", data.Stats.Period()),
		HTML:    buf.String(),
	}, nil
}
