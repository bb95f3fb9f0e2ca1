package model

import (
	"sort"
	"strings"

	"proforma/internal/ledger"

	"github.com/google/uuid"
)

// TargetKind names what a payment is paid against.
type TargetKind string

const (
	TargetInvoice  TargetKind = "invoice"
	TargetFreeZone TargetKind = "free_zone"
	TargetVessel   TargetKind = "vessel"
	TargetPort     TargetKind = "port"
	TargetProduct  TargetKind = "product"
)

// Target is the closed set of things a payment can settle. Implementations
// live in this file only; switch on them through a TargetVisitor so a new kind
// breaks every visitor at compile time.
type Target interface {
	Kind() TargetKind
	// Key is the canonical identity of the target within its kind.
	Key() string
	Accept(v TargetVisitor)
	sealed()
}

// TargetVisitor has one method per target kind.
type TargetVisitor interface {
	VisitInvoice(t InvoiceTarget)
	VisitFreeZones(t FreeZoneTarget)
	VisitVessel(t VesselTarget)
	VisitPort(t PortTarget)
	VisitProduct(t ProductTarget)
}

type InvoiceTarget struct {
	InvoiceID uuid.UUID
}

// FreeZoneTarget pays a group of free zones with a single ledger entry.
// The ids are kept sorted and unique.
type FreeZoneTarget struct {
	FreeZoneIDs []string
}

type VesselTarget struct {
	VesselID string
}

type PortTarget struct {
	PortID string
}

type ProductTarget struct {
	ProductID string
}

func NewInvoiceTarget(id uuid.UUID) (InvoiceTarget, error) {
	if id == uuid.Nil {
		return InvoiceTarget{}, ledger.Validation("invoice target requires an invoice id")
	}
	return InvoiceTarget{InvoiceID: id}, nil
}

func NewFreeZoneTarget(ids []string) (FreeZoneTarget, error) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return FreeZoneTarget{}, ledger.Validation("free zone ids must not be blank")
		}
		if strings.Contains(id, ",") {
			return FreeZoneTarget{}, ledger.Validation("free zone id %q must not contain a comma", id)
		}
		set[id] = struct{}{}
	}
	if len(set) == 0 {
		return FreeZoneTarget{}, ledger.Validation("free zone target requires at least one free zone")
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return FreeZoneTarget{FreeZoneIDs: out}, nil
}

func NewVesselTarget(id string) (VesselTarget, error) {
	id, err := requireRef("vessel", id)
	return VesselTarget{VesselID: id}, err
}

func NewPortTarget(id string) (PortTarget, error) {
	id, err := requireRef("port", id)
	return PortTarget{PortID: id}, err
}

func NewProductTarget(id string) (ProductTarget, error) {
	id, err := requireRef("product", id)
	return ProductTarget{ProductID: id}, err
}

func requireRef(kind, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ledger.Validation("%s target requires a %s id", kind, kind)
	}
	return id, nil
}

func (InvoiceTarget) Kind() TargetKind  { return TargetInvoice }
func (FreeZoneTarget) Kind() TargetKind { return TargetFreeZone }
func (VesselTarget) Kind() TargetKind   { return TargetVessel }
func (PortTarget) Kind() TargetKind     { return TargetPort }
func (ProductTarget) Kind() TargetKind  { return TargetProduct }

func (t InvoiceTarget) Key() string  { return t.InvoiceID.String() }
func (t FreeZoneTarget) Key() string { return strings.Join(t.FreeZoneIDs, ",") }
func (t VesselTarget) Key() string   { return t.VesselID }
func (t PortTarget) Key() string     { return t.PortID }
func (t ProductTarget) Key() string  { return t.ProductID }

func (t InvoiceTarget) Accept(v TargetVisitor)  { v.VisitInvoice(t) }
func (t FreeZoneTarget) Accept(v TargetVisitor) { v.VisitFreeZones(t) }
func (t VesselTarget) Accept(v TargetVisitor)   { v.VisitVessel(t) }
func (t PortTarget) Accept(v TargetVisitor)     { v.VisitPort(t) }
func (t ProductTarget) Accept(v TargetVisitor)  { v.VisitProduct(t) }

func (InvoiceTarget) sealed()  {}
func (FreeZoneTarget) sealed() {}
func (VesselTarget) sealed()   {}
func (PortTarget) sealed()     {}
func (ProductTarget) sealed()  {}

// LockKey identifies the single-writer scope of a target.
func LockKey(t Target) string {
	return string(t.Kind()) + ":" + t.Key()
}

// ParseTarget rebuilds a target from its kind and the reference list used in
// requests and storage.
func ParseTarget(kind TargetKind, refs []string) (Target, error) {
	one := func() (string, error) {
		if len(refs) != 1 {
			return "", ledger.Validation("%s target takes exactly one id", kind)
		}
		return refs[0], nil
	}
	switch kind {
	case TargetInvoice:
		ref, err := one()
		if err != nil {
			return nil, err
		}
		id, err := uuid.Parse(strings.TrimSpace(ref))
		if err != nil {
			return nil, ledger.Validation("invalid invoice id %q", ref)
		}
		return NewInvoiceTarget(id)
	case TargetFreeZone:
		return NewFreeZoneTarget(refs)
	case TargetVessel:
		ref, err := one()
		if err != nil {
			return nil, err
		}
		return NewVesselTarget(ref)
	case TargetPort:
		ref, err := one()
		if err != nil {
			return nil, err
		}
		return NewPortTarget(ref)
	case TargetProduct:
		ref, err := one()
		if err != nil {
			return nil, err
		}
		return NewProductTarget(ref)
	}
	return nil, ledger.Validation("unknown target kind %q", kind)
}

// ParseTargetKey is ParseTarget for a canonical key.
func ParseTargetKey(kind TargetKind, key string) (Target, error) {
	if kind == TargetFreeZone {
		return ParseTarget(kind, strings.Split(key, ","))
	}
	return ParseTarget(kind, []string{key})
}

// targetColumns flattens a target into the payment row.
type targetColumns struct {
	invoiceID *uuid.UUID
	refs      []string
}

func (c *targetColumns) VisitInvoice(t InvoiceTarget) {
	id := t.InvoiceID
	c.invoiceID = &id
	c.refs = []string{id.String()}
}

func (c *targetColumns) VisitFreeZones(t FreeZoneTarget) {
	c.refs = append([]string(nil), t.FreeZoneIDs...)
}

func (c *targetColumns) VisitVessel(t VesselTarget)   { c.refs = []string{t.VesselID} }
func (c *targetColumns) VisitPort(t PortTarget)       { c.refs = []string{t.PortID} }
func (c *targetColumns) VisitProduct(t ProductTarget) { c.refs = []string{t.ProductID} }
