package leave

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"leavedesk/internal/domain/auth"
)

// Statement renders an employee's balances and requests for year as a PDF document.
func (a *Admin) Statement(ctx context.Context, actor auth.Principal, employeeID string, year int) ([]byte, error) {
	var emp Employee
	var rows []BalanceSummary
	var requests []LeaveRequest
	names := map[string]string{}
	err := runTx(ctx, a.store, a.log, "statement", func(tx Tx) error {
		var err error
		emp, err = a.resolveEmployee(ctx, tx, actor, employeeID)
		if err != nil {
			return err
		}
		rows, err = a.summaries(ctx, tx, emp.ID, year)
		if err != nil {
			return err
		}
		for _, r := range rows {
			names[r.LeaveTypeID] = r.LeaveTypeName
		}
		requests, err = tx.Requests(ctx, RequestFilter{
			EmployeeID: emp.ID,
			From:       Date(year, time.January, 1),
			To:         Date(year, time.December, 31),
		})
		if err != nil {
			return err
		}
		for _, r := range requests {
			if _, ok := names[r.LeaveTypeID]; ok {
				continue
			}
			lt, err := a.registry.Get(ctx, tx, r.LeaveTypeID)
			if err != nil {
				return err
			}
			names[lt.ID] = lt.Name
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renderStatement(emp, year, rows, requests, names, a.opts.now())
}

func renderStatement(emp Employee, year int, rows []BalanceSummary, requests []LeaveRequest, names map[string]string, generated time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Leave statement %d", year), false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Leave statement %d", year))
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s (%s)", emp.FullName(), emp.EmployeeNumber))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Joined: %s", emp.JoiningDate.Format(time.DateOnly)))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Generated: %s", generated.UTC().Format(time.RFC3339)))
	pdf.Ln(10)

	balanceCols := []struct {
		title string
		width float64
	}{
		{"Leave type", 50}, {"Allocated", 26}, {"Carried", 26}, {"Used", 26}, {"Pending", 26}, {"Available", 26},
	}
	pdf.SetFont("Helvetica", "B", 10)
	for _, c := range balanceCols {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	for _, r := range rows {
		values := []string{
			r.LeaveTypeName,
			r.AllocatedDays.StringFixed(2),
			r.CarriedForwardDays.StringFixed(2),
			r.UsedDays.StringFixed(2),
			r.PendingDays.StringFixed(2),
			r.AvailableBalance.StringFixed(2),
		}
		for i, v := range values {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(balanceCols[i].width, 7, v, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Requests")
	pdf.Ln(9)
	if len(requests) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 7, "No leave requests this year.")
		pdf.Ln(-1)
	}
	pdf.SetFont("Helvetica", "", 10)
	for _, r := range requests {
		line := fmt.Sprintf("%s  %s to %s  %s days  %s",
			names[r.LeaveTypeID], r.StartDate.Format(time.DateOnly), r.EndDate.Format(time.DateOnly),
			r.NumberOfDays.StringFixed(2), r.Status)
		pdf.CellFormat(0, 7, line, "B", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render statement: %w", err)
	}
	return buf.Bytes(), nil
}
