package service

import (
	"context"
	"io"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/sri"

	"github.com/google/uuid"
)

// FiscalAdapter is the only contract the core knows about the SRI.
// A non-nil error from SignAndSubmit or ConsultAuthorization always means
// the outcome is unknown and the call may be retried.
type FiscalAdapter interface {
	GenerateAccessKey(p sri.ParametrosClave) (string, error)
	SignAndSubmit(ctx context.Context, f *model.Factura, socio *model.Socio) (sri.ResultadoEnvio, error)
	ConsultAuthorization(ctx context.Context, claveAcceso string) (sri.ResultadoAutorizacion, error)
}

// Encolador pushes follow-up work to the async queue. Enqueue failures are
// logged by callers and never undo a committed business operation.
type Encolador interface {
	EnqueueSubmission(ctx context.Context, facturaID uuid.UUID) error
	EnqueueInvoiceEmail(ctx context.Context, facturaID uuid.UUID) error
	EnqueueFineEmail(ctx context.Context, cuentaID uuid.UUID) error
}

// InvoiceRenderer produces the RIDE of an invoice.
type InvoiceRenderer interface {
	RenderInvoice(f *model.Factura, socio *model.Socio) ([]byte, error)
}

// EvidenceStorage keeps transfer receipts and justification documents.
type EvidenceStorage interface {
	Save(ctx context.Context, folder, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, rel string) error
}

// Evidencia is an uploaded file handed to a service.
type Evidencia struct {
	Filename string
	Content  io.Reader
}

// ReceiptNumberer yields unique payment receipt numbers.
type ReceiptNumberer interface {
	Next() string
}

// Clock is injected so tests can pin "today".
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// noopEncolador is used when no queue is configured.
type noopEncolador struct{}

func (noopEncolador) EnqueueSubmission(context.Context, uuid.UUID) error   { return nil }
func (noopEncolador) EnqueueInvoiceEmail(context.Context, uuid.UUID) error { return nil }
func (noopEncolador) EnqueueFineEmail(context.Context, uuid.UUID) error    { return nil }
