package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/sjperalta/fintera-matching-api/internal/repository"
	"github.com/xuri/excelize/v2"
)

// MaxExportRows caps the rows of one export
const MaxExportRows = 10000

var exportHeader = []string{
	"Record ID", "Member ID", "Member", "Email", "Income Type", "Leg", "Sale Amount",
	"Balanced Amount", "Commission %", "Income Amount", "Status", "Sale Date",
	"Eligible From", "Approved At", "Paid Amount", "Transaction ID",
}

type ExportService struct {
	incomeRepo repository.IncomeRepository
	Now        func() time.Time
}

func NewExportService(incomeRepo repository.IncomeRepository) *ExportService {
	return &ExportService{incomeRepo: incomeRepo, Now: time.Now}
}

// ExportIncome renders the filtered income records as csv or xlsx
func (s *ExportService) ExportIncome(ctx context.Context, filter *repository.IncomeFilter, format string) ([]byte, string, error) {
	now := s.Now()
	if filter.Now.IsZero() {
		filter.Now = now
	}
	records, err := s.incomeRepo.ListAll(ctx, filter, MaxExportRows)
	if err != nil {
		return nil, "", err
	}

	rows := make([][]string, 0, len(records))
	for i := range records {
		rows = append(rows, exportRow(&records[i], filter.Now))
	}

	switch format {
	case "", "csv":
		return s.writeCSV(rows, now)
	case "xlsx":
		return s.writeXLSX(rows, now)
	}
	return nil, "", fmt.Errorf("%w: unsupported export format %q", ErrInvalidInput, format)
}

func exportRow(r *models.IncomeRecord, now time.Time) []string {
	balanced := ""
	if r.IncomeType == models.IncomeTypeMatchingBonus {
		balanced = r.BalancedAmount.StringFixed(2)
	}
	approvedAt := ""
	if r.ApprovedAt != nil {
		approvedAt = r.ApprovedAt.Format("2006-01-02")
	}
	paidAmount, txID := "", ""
	if details := r.PaymentDetails(); details != nil {
		paidAmount = details.PaidAmount.StringFixed(2)
		txID = getStringValue(details.TransactionID)
	}
	return []string{
		fmt.Sprintf("%d", r.ID),
		fmt.Sprintf("%d", r.UserID),
		r.User.FullName,
		r.User.Email,
		string(r.IncomeType),
		string(r.LegType),
		r.SaleAmount.StringFixed(2),
		balanced,
		r.CommissionPercentage.String(),
		r.IncomeAmount.StringFixed(2),
		string(r.EffectiveStatus(now)),
		r.SaleDate.Format("2006-01-02"),
		r.EligibleForApprovalDate.Format("2006-01-02"),
		approvedAt,
		paidAmount,
		txID,
	}
}

func (s *ExportService) writeCSV(rows [][]string, now time.Time) ([]byte, string, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	if err := writer.Write(exportHeader); err != nil {
		return nil, "", err
	}
	if err := writer.WriteAll(rows); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("matching_income_%s.csv", now.Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

func (s *ExportService) writeXLSX(rows [][]string, now time.Time) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Income"
	_ = f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return nil, "", err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeader))
	_ = f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle)

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, "", err
		}
	}
	_ = f.SetColWidth(sheet, "A", lastCol, 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("matching_income_%s.xlsx", now.Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}
