package service

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/sri"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// In-memory repositories. Each embeds its interface so a call to a method
// the test did not expect panics instead of silently passing.

var hoyFijo = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func relojFijo() Clock { return func() time.Time { return hoyFijo } }

type fakeTx struct{}

func (fakeTx) Transaction(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

// ── socios ───────────────────────────────────────────────────────────────────

type fakeSocios struct {
	repository.SocioRepository
	mu       sync.Mutex
	rows     map[uuid.UUID]model.Socio
	terrenos fakeTerrenos
	locks    int
}

func newFakeSocios(ss ...model.Socio) *fakeSocios {
	f := &fakeSocios{rows: map[uuid.UUID]model.Socio{}}
	for _, s := range ss {
		f.rows[s.ID] = s
	}
	return f
}

func (f *fakeSocios) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.Socio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok {
		return nil, apperror.NotFound("socio", id)
	}
	return &s, nil
}

func (f *fakeSocios) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Socio, error) {
	f.mu.Lock()
	f.locks++
	f.mu.Unlock()
	return f.FindByID(ctx, tx, id)
}

// ── cuentas por cobrar ───────────────────────────────────────────────────────

type fakeCuentas struct {
	repository.CuentaPorCobrarRepository
	mu   sync.Mutex
	rows map[uuid.UUID]model.CuentaPorCobrar
	seq  map[uuid.UUID]int
	n    int
}

func newFakeCuentas() *fakeCuentas {
	return &fakeCuentas{rows: map[uuid.UUID]model.CuentaPorCobrar{}, seq: map[uuid.UUID]int{}}
}

func (f *fakeCuentas) put(c model.CuentaPorCobrar) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seq[c.ID]; !ok {
		f.n++
		f.seq[c.ID] = f.n
	}
	f.rows[c.ID] = c
}

func (f *fakeCuentas) get(id uuid.UUID) model.CuentaPorCobrar {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

func (f *fakeCuentas) Create(_ context.Context, _ *gorm.DB, c *model.CuentaPorCobrar) error {
	for _, r := range f.all() {
		if r.SocioID == c.SocioID && r.OrigenReferencia == c.OrigenReferencia {
			return apperror.IntegrityConflict("cuenta_por_cobrar", nil)
		}
	}
	f.put(*c)
	return nil
}

func (f *fakeCuentas) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.CuentaPorCobrar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, apperror.NotFound("cuenta_por_cobrar", id)
	}
	return &c, nil
}

func (f *fakeCuentas) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CuentaPorCobrar, error) {
	return f.FindByID(ctx, tx, id)
}

func (f *fakeCuentas) FindByOrigen(_ context.Context, _ *gorm.DB, socioID uuid.UUID, origen string) (*model.CuentaPorCobrar, error) {
	for _, c := range f.all() {
		if c.SocioID == socioID && c.OrigenReferencia == origen {
			return &c, nil
		}
	}
	return nil, nil
}

// all returns every row in FIFO order.
func (f *fakeCuentas) all() []model.CuentaPorCobrar {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.CuentaPorCobrar, 0, len(f.rows))
	for _, c := range f.rows {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FechaEmision.Equal(out[j].FechaEmision) {
			return out[i].FechaEmision.Before(out[j].FechaEmision)
		}
		return f.seq[out[i].ID] < f.seq[out[j].ID]
	})
	return out
}

func (f *fakeCuentas) LockPendientesBySocio(_ context.Context, _ *gorm.DB, socioID uuid.UUID) ([]model.CuentaPorCobrar, error) {
	var out []model.CuentaPorCobrar
	for _, c := range f.all() {
		if c.SocioID != socioID || !c.SaldoPendiente.IsPositive() {
			continue
		}
		for _, e := range model.EstadosCxCImputables {
			if c.Estado == e {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeCuentas) ListPendientesBySocio(ctx context.Context, tx *gorm.DB, socioID uuid.UUID) ([]model.CuentaPorCobrar, error) {
	return f.LockPendientesBySocio(ctx, tx, socioID)
}

func (f *fakeCuentas) ListByFactura(_ context.Context, _ *gorm.DB, facturaID uuid.UUID) ([]model.CuentaPorCobrar, error) {
	var out []model.CuentaPorCobrar
	for _, c := range f.all() {
		if c.FacturaID != nil && *c.FacturaID == facturaID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCuentas) LockByFactura(ctx context.Context, tx *gorm.DB, facturaID uuid.UUID) ([]model.CuentaPorCobrar, error) {
	return f.ListByFactura(ctx, tx, facturaID)
}

func (f *fakeCuentas) Update(_ context.Context, _ *gorm.DB, c *model.CuentaPorCobrar) error {
	f.put(*c)
	return nil
}

// ── rubros ───────────────────────────────────────────────────────────────────

type fakeRubros struct {
	repository.RubroRepository
	rows map[uuid.UUID]model.CatalogoRubro
}

func newFakeRubros(rs ...model.CatalogoRubro) *fakeRubros {
	f := &fakeRubros{rows: map[uuid.UUID]model.CatalogoRubro{}}
	for _, r := range rs {
		f.rows[r.ID] = r
	}
	return f
}

func (f *fakeRubros) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.CatalogoRubro, error) {
	r, ok := f.rows[id]
	if !ok {
		return nil, apperror.NotFound("rubro", id)
	}
	return &r, nil
}

func (f *fakeRubros) FindPorTipo(_ context.Context, _ *gorm.DB, tipo string) (*model.CatalogoRubro, error) {
	for _, r := range f.rows {
		if r.Tipo == tipo && r.Activo {
			return &r, nil
		}
	}
	return nil, nil
}

// ── pagos ────────────────────────────────────────────────────────────────────

type fakePagos struct {
	repository.PagoRepository
	mu   sync.Mutex
	apps []model.PagoAplicacion
	rows map[uuid.UUID]model.Pago
}

func (f *fakePagos) Create(_ context.Context, _ *gorm.DB, p *model.Pago) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows == nil {
		f.rows = map[uuid.UUID]model.Pago{}
	}
	f.rows[p.ID] = *p
	return nil
}

func (f *fakePagos) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.Pago, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil, apperror.NotFound("pago", id.String())
	}
	return &p, nil
}

func (f *fakePagos) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Pago, error) {
	return f.FindByID(ctx, tx, id)
}

func (f *fakePagos) Update(_ context.Context, _ *gorm.DB, p *model.Pago) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[p.ID] = *p
	return nil
}

func (f *fakePagos) Delete(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakePagos) ListValidados(_ context.Context, from, to time.Time) ([]model.Pago, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Pago
	for _, p := range f.rows {
		if p.Validado && !p.FechaPago.Before(from) && p.FechaPago.Before(to) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NumeroRecibo < out[j].NumeroRecibo })
	return out, nil
}

func (f *fakePagos) ResumenPorMetodo(ctx context.Context, from, to time.Time) ([]repository.TotalPorMetodo, error) {
	pagos, _ := f.ListValidados(ctx, from, to)
	idx := map[string]int{}
	var out []repository.TotalPorMetodo
	for _, p := range pagos {
		for _, d := range p.Detalles {
			i, ok := idx[d.Metodo]
			if !ok {
				i = len(out)
				idx[d.Metodo] = i
				out = append(out, repository.TotalPorMetodo{Metodo: d.Metodo, Total: decimal.Zero})
			}
			out[i].Total = out[i].Total.Add(d.Monto)
			out[i].Cantidad++
		}
	}
	return out, nil
}

func (f *fakePagos) CreateAplicaciones(_ context.Context, _ *gorm.DB, apps []model.PagoAplicacion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps = append(f.apps, apps...)
	return nil
}

func (f *fakePagos) SumAplicadoCuenta(_ context.Context, _ *gorm.DB, cuentaID uuid.UUID) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := decimal.Zero
	for _, a := range f.apps {
		if a.CuentaPorCobrarID == cuentaID {
			total = total.Add(a.Monto)
		}
	}
	return total, nil
}

// ── facturas ─────────────────────────────────────────────────────────────────

type fakeFacturas struct {
	repository.FacturaRepository
	mu          sync.Mutex
	rows        map[uuid.UUID]model.Factura
	fiscalWrite int
}

func newFakeFacturas() *fakeFacturas {
	return &fakeFacturas{rows: map[uuid.UUID]model.Factura{}}
}

func (f *fakeFacturas) get(id uuid.UUID) model.Factura {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

func (f *fakeFacturas) Create(_ context.Context, _ *gorm.DB, fa *model.Factura) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[fa.ID] = *fa
	return nil
}

func (f *fakeFacturas) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.Factura, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fa, ok := f.rows[id]
	if !ok {
		return nil, apperror.NotFound("factura", id)
	}
	return &fa, nil
}

func (f *fakeFacturas) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Factura, error) {
	return f.FindByID(ctx, tx, id)
}

func (f *fakeFacturas) FindByClave(_ context.Context, _ *gorm.DB, clave string) (*model.Factura, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fa := range f.rows {
		if fa.ClaveAcceso == clave {
			return &fa, nil
		}
	}
	return nil, apperror.NotFound("factura", clave)
}

func (f *fakeFacturas) FindByServicioPeriodo(_ context.Context, _ *gorm.DB, servicioID uuid.UUID, anio, mes int) (*model.Factura, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fa := range f.rows {
		if fa.ServicioID != nil && *fa.ServicioID == servicioID && fa.PeriodoAnio == anio && fa.PeriodoMes == mes {
			return &fa, nil
		}
	}
	return nil, nil
}

func (f *fakeFacturas) UpdateEstado(_ context.Context, _ *gorm.DB, id uuid.UUID, estado string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fa := f.rows[id]
	fa.Estado = estado
	f.rows[id] = fa
	return nil
}

func (f *fakeFacturas) UpdateFiscal(_ context.Context, _ *gorm.DB, fa *model.Factura) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prev, ok := f.rows[fa.ID]; ok && prev.Autorizada() {
		return apperror.BusinessRule(apperror.RuleInvoiceAlreadyAuthorized, prev.NumeroFactura())
	}
	f.fiscalWrite++
	f.rows[fa.ID] = *fa
	return nil
}

// ── auditoría, secuenciales ──────────────────────────────────────────────────

type fakeAuditoria struct {
	repository.AuditoriaRepository
	mu   sync.Mutex
	rows []model.Auditoria
}

func (f *fakeAuditoria) Create(_ context.Context, _ *gorm.DB, a *model.Auditoria) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, *a)
	return nil
}

func (f *fakeAuditoria) acciones() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.rows))
	for i, a := range f.rows {
		out[i] = a.Accion
	}
	return out
}

type fakeSecuenciales struct {
	repository.SecuencialRepository
	mu     sync.Mutex
	actual int64
}

func (f *fakeSecuenciales) Reserve(_ context.Context, tx *gorm.DB, _, _, _ string) (int64, error) {
	if tx == nil {
		panic("Reserve outside a transaction")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actual++
	return f.actual, nil
}

// ── medidores, servicios ─────────────────────────────────────────────────────

type fakeMedidores struct {
	repository.MedidorRepository
	mu        sync.Mutex
	medidores map[uuid.UUID]model.Medidor
	lecturas  map[uuid.UUID]model.Lectura
}

func newFakeMedidores() *fakeMedidores {
	return &fakeMedidores{medidores: map[uuid.UUID]model.Medidor{}, lecturas: map[uuid.UUID]model.Lectura{}}
}

func (f *fakeMedidores) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.Medidor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.medidores[id]
	if !ok {
		return nil, apperror.NotFound("medidor", id)
	}
	return &m, nil
}

func (f *fakeMedidores) LockLectura(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.Lectura, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lecturas[id]
	if !ok {
		return nil, apperror.NotFound("lectura", id)
	}
	return &l, nil
}

func (f *fakeMedidores) MarcarFacturada(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lecturas[id]
	l.Facturada = true
	f.lecturas[id] = l
	return nil
}

type fakeServicios struct {
	repository.ServicioRepository
	rows    map[uuid.UUID]model.Servicio
	ordenes map[uuid.UUID]model.OrdenTrabajo
}

func newFakeServicios(ss ...model.Servicio) *fakeServicios {
	f := &fakeServicios{rows: map[uuid.UUID]model.Servicio{}, ordenes: map[uuid.UUID]model.OrdenTrabajo{}}
	for _, s := range ss {
		f.rows[s.ID] = s
	}
	return f
}

func (f *fakeServicios) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.Servicio, error) {
	s, ok := f.rows[id]
	if !ok {
		return nil, apperror.NotFound("servicio", id)
	}
	return &s, nil
}

func (f *fakeServicios) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Servicio, error) {
	return f.FindByID(ctx, tx, id)
}

func (f *fakeServicios) FindActivoByTerreno(_ context.Context, _ *gorm.DB, terrenoID uuid.UUID) (*model.Servicio, error) {
	for _, s := range f.rows {
		if s.TerrenoID == terrenoID && s.Activo {
			return &s, nil
		}
	}
	return nil, nil
}

// ── SRI and queue ────────────────────────────────────────────────────────────

type fakeFiscal struct {
	mu        sync.Mutex
	envio     sri.ResultadoEnvio
	envioErr  error
	autoriz   []sri.ResultadoAutorizacion
	enviados  int
	consultas int
}

func (f *fakeFiscal) GenerateAccessKey(p sri.ParametrosClave) (string, error) {
	p.CodigoNumerico = "12345678"
	return sri.GenerarClaveAcceso(p)
}

func (f *fakeFiscal) SignAndSubmit(_ context.Context, _ *model.Factura, _ *model.Socio) (sri.ResultadoEnvio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enviados++
	return f.envio, f.envioErr
}

// ConsultAuthorization replays the queued answers and repeats the last one.
func (f *fakeFiscal) ConsultAuthorization(_ context.Context, _ string) (sri.ResultadoAutorizacion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consultas++
	if len(f.autoriz) == 0 {
		return sri.ResultadoAutorizacion{Estado: sri.AutorizacionEnProceso}, nil
	}
	r := f.autoriz[0]
	if len(f.autoriz) > 1 {
		f.autoriz = f.autoriz[1:]
	}
	return r, nil
}

type fakeCola struct {
	mu      sync.Mutex
	envios  []uuid.UUID
	correos []uuid.UUID
	multas  []uuid.UUID
}

func (f *fakeCola) EnqueueSubmission(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envios = append(f.envios, id)
	return nil
}

func (f *fakeCola) EnqueueInvoiceEmail(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.correos = append(f.correos, id)
	return nil
}

func (f *fakeCola) EnqueueFineEmail(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.multas = append(f.multas, id)
	return nil
}

func (f *fakeServicios) ListActivosPorTipo(_ context.Context, _ *gorm.DB, tipo string) ([]model.Servicio, error) {
	var out []model.Servicio
	for _, s := range f.rows {
		if s.Tipo == tipo && s.Activo {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeServicios) Update(_ context.Context, _ *gorm.DB, s *model.Servicio) error {
	f.rows[s.ID] = *s
	return nil
}

func (f *fakeMedidores) Create(_ context.Context, _ *gorm.DB, m *model.Medidor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.medidores {
		if o.Codigo == m.Codigo {
			return apperror.IntegrityConflict("medidor", nil)
		}
	}
	f.medidores[m.ID] = *m
	return nil
}

func (f *fakeMedidores) FindByCodigo(_ context.Context, _ *gorm.DB, codigo string) (*model.Medidor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.medidores {
		if m.Codigo == codigo {
			return &m, nil
		}
	}
	return nil, nil
}

func (f *fakeMedidores) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Medidor, error) {
	return f.FindByID(ctx, tx, id)
}

func (f *fakeMedidores) FindActivoByTerreno(_ context.Context, _ *gorm.DB, terrenoID uuid.UUID) (*model.Medidor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.medidores {
		if m.Estado == model.MedidorActivo && m.TerrenoID != nil && *m.TerrenoID == terrenoID {
			return &m, nil
		}
	}
	return nil, nil
}

func (f *fakeMedidores) Update(_ context.Context, _ *gorm.DB, m *model.Medidor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.medidores[m.ID] = *m
	return nil
}

func (f *fakeMedidores) CreateLectura(_ context.Context, _ *gorm.DB, l *model.Lectura) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lecturas[l.ID] = *l
	return nil
}

func (f *fakeMedidores) UltimaLectura(_ context.Context, _ *gorm.DB, medidorID uuid.UUID) (*model.Lectura, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ultima *model.Lectura
	for _, l := range f.lecturas {
		if l.MedidorID != medidorID {
			continue
		}
		if ultima == nil || l.Fecha.After(ultima.Fecha) {
			l := l
			ultima = &l
		}
	}
	return ultima, nil
}

type fakeTerrenos map[uuid.UUID]model.Terreno

// conTerrenos lets a fakeSocios answer FindTerreno.
func (f *fakeSocios) conTerrenos(ts ...model.Terreno) *fakeSocios {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.terrenos == nil {
		f.terrenos = fakeTerrenos{}
	}
	for _, t := range ts {
		f.terrenos[t.ID] = t
	}
	return f
}

func (f *fakeSocios) FindTerreno(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.Terreno, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.terrenos[id]
	if !ok {
		return nil, apperror.NotFound("terreno", id)
	}
	return &t, nil
}

func (f *fakeSocios) FindByIdentificacion(_ context.Context, identificacion string) (*model.Socio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.rows {
		if s.Identificacion == identificacion {
			return &s, nil
		}
	}
	return nil, apperror.NotFound("socio", identificacion)
}

func (f *fakeSocios) Create(_ context.Context, _ *gorm.DB, s *model.Socio) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[s.ID] = *s
	return nil
}

func (f *fakeSocios) Update(_ context.Context, _ *gorm.DB, s *model.Socio) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[s.ID] = *s
	return nil
}

func (f *fakeSocios) UpdateTerreno(_ context.Context, _ *gorm.DB, t *model.Terreno) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terrenos[t.ID] = *t
	return nil
}

func (f *fakeServicios) Create(_ context.Context, _ *gorm.DB, s *model.Servicio) error {
	f.rows[s.ID] = *s
	return nil
}

func (f *fakeSocios) ListByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]model.Socio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Socio
	for _, id := range ids {
		if s, ok := f.rows[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSocios) ListActivos(_ context.Context, _ *gorm.DB, barrioID *uuid.UUID) ([]model.Socio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Socio
	for _, s := range f.rows {
		if !s.Activo {
			continue
		}
		if barrioID != nil && (s.BarrioID == nil || *s.BarrioID != *barrioID) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// ── eventos ──────────────────────────────────────────────────────────────────

type fakeEventos struct {
	repository.EventoRepository
	eventos         map[uuid.UUID]model.Evento
	asistencias     map[uuid.UUID]model.Asistencia
	orden           []uuid.UUID
	justificaciones map[uuid.UUID]model.SolicitudJustificacion
}

func newFakeEventos() *fakeEventos {
	return &fakeEventos{
		eventos:         map[uuid.UUID]model.Evento{},
		asistencias:     map[uuid.UUID]model.Asistencia{},
		justificaciones: map[uuid.UUID]model.SolicitudJustificacion{},
	}
}

func (f *fakeEventos) Create(_ context.Context, _ *gorm.DB, e *model.Evento) error {
	f.eventos[e.ID] = *e
	return nil
}

func (f *fakeEventos) LockByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.Evento, error) {
	e, ok := f.eventos[id]
	if !ok {
		return nil, apperror.NotFound("evento", id)
	}
	return &e, nil
}

func (f *fakeEventos) Update(_ context.Context, _ *gorm.DB, e *model.Evento) error {
	f.eventos[e.ID] = *e
	return nil
}

func (f *fakeEventos) CreateAsistencias(_ context.Context, _ *gorm.DB, as []model.Asistencia) error {
	for _, a := range as {
		f.asistencias[a.ID] = a
		f.orden = append(f.orden, a.ID)
	}
	return nil
}

func (f *fakeEventos) LockAsistencia(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.Asistencia, error) {
	a, ok := f.asistencias[id]
	if !ok {
		return nil, apperror.NotFound("asistencia", id)
	}
	return &a, nil
}

func (f *fakeEventos) LockAsistenciasByEvento(_ context.Context, _ *gorm.DB, eventoID uuid.UUID) ([]model.Asistencia, error) {
	var out []model.Asistencia
	for _, id := range f.orden {
		if a := f.asistencias[id]; a.EventoID == eventoID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeEventos) UpdateAsistencia(_ context.Context, _ *gorm.DB, a *model.Asistencia) error {
	f.asistencias[a.ID] = *a
	return nil
}

func (f *fakeEventos) CreateJustificacion(_ context.Context, _ *gorm.DB, s *model.SolicitudJustificacion) error {
	f.justificaciones[s.ID] = *s
	return nil
}

func (f *fakeEventos) LockJustificacion(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.SolicitudJustificacion, error) {
	s, ok := f.justificaciones[id]
	if !ok {
		return nil, apperror.NotFound("solicitud_justificacion", id)
	}
	return &s, nil
}

func (f *fakeEventos) FindJustificacionByAsistencia(_ context.Context, _ *gorm.DB, asistenciaID uuid.UUID) (*model.SolicitudJustificacion, error) {
	for _, s := range f.justificaciones {
		if s.AsistenciaID == asistenciaID {
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeEventos) UpdateJustificacion(_ context.Context, _ *gorm.DB, s *model.SolicitudJustificacion) error {
	f.justificaciones[s.ID] = *s
	return nil
}

// ── pagos: collaborators ─────────────────────────────────────────────────────

type fakeRecibos struct {
	mu sync.Mutex
	n  int
}

func (r *fakeRecibos) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	return fmt.Sprintf("REC-%04d", r.n)
}

type fakeObserver struct {
	mu     sync.Mutex
	socios []uuid.UUID
	err    error
}

func (o *fakeObserver) OnBalanceChanged(_ context.Context, socioID uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.socios = append(o.socios, socioID)
	return o.err
}

type fakeEvidencias struct {
	mu       sync.Mutex
	files    map[string][]byte
	borrados []string
}

func newFakeEvidencias() *fakeEvidencias { return &fakeEvidencias{files: map[string][]byte{}} }

func (e *fakeEvidencias) Save(_ context.Context, folder, filename string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	rel := folder + "/" + uuid.NewString() + "-" + filename
	e.files[rel] = b
	return rel, nil
}

func (e *fakeEvidencias) Delete(_ context.Context, rel string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.files, rel)
	e.borrados = append(e.borrados, rel)
	return nil
}

// ── servicios: listings and work orders ──────────────────────────────────────

func (f *fakeServicios) ListActivos(_ context.Context, _ *gorm.DB) ([]model.Servicio, error) {
	var out []model.Servicio
	for _, s := range f.rows {
		if s.Activo {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (f *fakeServicios) ListBySocio(_ context.Context, _ *gorm.DB, socioID uuid.UUID) ([]model.Servicio, error) {
	var out []model.Servicio
	for _, s := range f.rows {
		if s.SocioID == socioID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeServicios) CreateOrden(_ context.Context, _ *gorm.DB, o *model.OrdenTrabajo) error {
	o.CreatedAt = hoyFijo
	f.ordenes[o.ID] = *o
	return nil
}

func (f *fakeServicios) FindOrden(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.OrdenTrabajo, error) {
	o, ok := f.ordenes[id]
	if !ok {
		return nil, apperror.NotFound("orden_trabajo", id)
	}
	return &o, nil
}

func (f *fakeServicios) LockOrden(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.OrdenTrabajo, error) {
	return f.FindOrden(ctx, tx, id)
}

func (f *fakeServicios) FindOrdenAbierta(_ context.Context, _ *gorm.DB, servicioID uuid.UUID, tipo string) (*model.OrdenTrabajo, error) {
	for _, o := range f.ordenes {
		if o.ServicioID == servicioID && o.Tipo == tipo && o.Abierta() {
			return &o, nil
		}
	}
	return nil, nil
}

func (f *fakeServicios) UpdateOrden(_ context.Context, _ *gorm.DB, o *model.OrdenTrabajo) error {
	f.ordenes[o.ID] = *o
	return nil
}

// ordenesDe lists the orders of a servicio, optionally filtered by tipo.
func (f *fakeServicios) ordenesDe(servicioID uuid.UUID, tipo string) []model.OrdenTrabajo {
	var out []model.OrdenTrabajo
	for _, o := range f.ordenes {
		if o.ServicioID == servicioID && (tipo == "" || o.Tipo == tipo) {
			out = append(out, o)
		}
	}
	return out
}

func (f *fakeCuentas) ResumenDeuda(_ context.Context, _ *gorm.DB, socioID uuid.UUID, at time.Time) (repository.ResumenDeuda, error) {
	r := repository.ResumenDeuda{SocioID: socioID, Total: decimal.Zero, Vencido: decimal.Zero}
	for _, c := range f.all() {
		if c.SocioID != socioID || !c.SaldoPendiente.IsPositive() || !slices.Contains(model.EstadosCxCAbiertos, c.Estado) {
			continue
		}
		r.Total = r.Total.Add(c.SaldoPendiente)
		r.Cuentas++
		if c.FechaVencimiento.Before(at) {
			r.Vencido = r.Vencido.Add(c.SaldoPendiente)
			r.CuentasVencidas++
		}
	}
	return r, nil
}

// ── productos ────────────────────────────────────────────────────────────────

type fakeProductos struct {
	repository.ProductoRepository
	mu   sync.Mutex
	rows map[uuid.UUID]model.ProductoMaterial
}

func newFakeProductos(ps ...model.ProductoMaterial) *fakeProductos {
	f := &fakeProductos{rows: map[uuid.UUID]model.ProductoMaterial{}}
	for _, p := range ps {
		f.rows[p.ID] = p
	}
	return f
}

func (f *fakeProductos) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.ProductoMaterial, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil, apperror.NotFound("material", id)
	}
	return &p, nil
}

func (f *fakeProductos) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.ProductoMaterial, error) {
	return f.FindByID(ctx, tx, id)
}

func (f *fakeProductos) UpdateStock(_ context.Context, _ *gorm.DB, id uuid.UUID, stock int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return apperror.NotFound("material", id)
	}
	p.StockActual = stock
	f.rows[id] = p
	return nil
}

func (f *fakeProductos) stock(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id].StockActual
}

type fakeMovimientos struct {
	repository.MovimientoStockRepository
	mu   sync.Mutex
	rows []model.MovimientoStock
}

func (f *fakeMovimientos) Create(_ context.Context, _ *gorm.DB, m *model.MovimientoStock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, *m)
	return nil
}

// fakePrecioCache only records which products were invalidated.
type fakePrecioCache struct {
	mu          sync.Mutex
	invalidados []uuid.UUID
}

func (c *fakePrecioCache) Get(context.Context, string) (*ConsultaPrecio, bool) { return nil, false }

func (c *fakePrecioCache) Set(context.Context, ConsultaPrecio) {}

func (c *fakePrecioCache) Invalidate(_ context.Context, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidados = append(c.invalidados, id)
}
