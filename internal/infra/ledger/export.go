package ledger

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
)

// SheetName is the worksheet holding exported orders.
const SheetName = "Orders"

// ExportHeader is the first row of the exported sheet.
var ExportHeader = []any{
	"Order ID", "Created At", "Phone", "Product", "Variants", "Quantity", "Quantity Note",
	"Name", "Shop", "Address", "Payment", "Amount", "Currency", "Payment Order", "Payment Link",
}

// ExportXLSX writes orders as one row each to w.
func ExportXLSX(w io.Writer, orders []domain.Order) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	header := ExportHeader
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(ExportHeader), 1)
		_ = f.SetCellStyle(SheetName, "A1", last, style)
	}

	for i, o := range orders {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			o.ID,
			o.CreatedAt.UTC().Format(time.RFC3339),
			o.Phone,
			o.ProductTitle,
			strings.Join(o.Variants, ", "),
			o.Quantity,
			o.QuantityNote,
			o.Name,
			o.Shop,
			o.Address,
			o.PaymentMethod,
			float64(o.AmountMinor) / 100,
			o.Currency,
			o.PaymentOrderID,
			o.PaymentLink,
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write order %s: %w", o.ID, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
