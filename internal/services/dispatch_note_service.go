package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"agridist/internal/models"
	"agridist/internal/repositories"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
)

// DispatchNoteService renders a PDF dispatch note for one allocation event
// and stores it alongside the receipts. The note is a courtesy artifact:
// failures are logged by the caller, never propagated into the allocation
// result.
type DispatchNoteService interface {
	Generate(ctx context.Context, distributorID, recipientID, productID uuid.UUID, allocations []*models.Allocation) (string, error)
}

type dispatchNoteService struct {
	productRepo repositories.ProductRepository
	storage     StorageService
}

func NewDispatchNoteService(productRepo repositories.ProductRepository, storage StorageService) DispatchNoteService {
	return &dispatchNoteService{
		productRepo: productRepo,
		storage:     storage,
	}
}

func (s *dispatchNoteService) Generate(ctx context.Context, distributorID, recipientID, productID uuid.UUID, allocations []*models.Allocation) (string, error) {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return "", err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	marginX := 20.0
	marginY := 20.0
	pdf.SetMargins(marginX, marginY, marginX)
	pdf.SetAutoPageBreak(true, marginY)

	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(33, 37, 41)
	pdf.SetXY(marginX, marginY)
	pdf.Cell(0, 10, "AGRIDIST DISPATCH NOTE")
	pdf.Ln(15)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Date: %s", time.Now().Format("02-Jan-2006")))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Distributor: %s", distributorID.String()))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Recipient: %s", recipientID.String()))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Product: %s (%s)", product.Name, product.SKU))
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(90, 8, "Lot")
	pdf.Cell(40, 8, "Units")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 11)
	total := 0
	for _, allocation := range allocations {
		pdf.Cell(90, 8, allocation.LotID.String())
		pdf.Cell(40, 8, fmt.Sprintf("%d", allocation.Quantity))
		pdf.Ln(8)
		total += allocation.Quantity
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(90, 8, "Total")
	pdf.Cell(40, 8, fmt.Sprintf("%d", total))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return "", err
	}

	objectName := fmt.Sprintf("%s/%s-%d.pdf", distributorID, recipientID, time.Now().UnixNano())
	if err := s.storage.Upload(ctx, BucketDispatchNotes, objectName, &buf, int64(buf.Len()), "application/pdf"); err != nil {
		return "", err
	}
	return objectName, nil
}
