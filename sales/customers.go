/*
customers.go - Customer registration

PURPOSE:
  Registers customers and keeps their mutable fields (name, phone,
  discount policy) up to date. The tax id is validated once, at
  registration, and never changes afterwards.

OPTIMISTIC REGISTRATION:
  Register looks the tax id up first and only then inserts. Two concurrent
  registrations of the same tax id can both pass the lookup; the store's
  unique constraint rejects the second insert with pos.ErrDuplicateKey, so
  at most one customer per tax id ever exists. The lookup only saves a
  round trip in the common case.
*/
package sales

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/pos-engine/pos"
)

// Registration is the input of Customers.Register.
type Registration struct {
	TaxID  pos.TaxID
	Name   string
	Phone  int64
	Policy pos.DiscountPolicy
}

type Customers struct {
	store pos.CustomerStore
	log   *zap.Logger
}

func NewCustomers(store pos.CustomerStore, log *zap.Logger) *Customers {
	return &Customers{store: store, log: log}
}

// Register creates a customer. Fails with a *pos.ValidationError for bad
// input and a *pos.DuplicateKeyError when the tax id is taken.
func (c *Customers) Register(ctx context.Context, r Registration) (pos.Customer, error) {
	if !pos.IsValidTaxID(r.TaxID) {
		return pos.Customer{}, &pos.ValidationError{Field: "tax_id", Reason: fmt.Sprintf("%d fails the checksum", r.TaxID)}
	}
	if err := validateDetails(r.Name, r.Phone, r.Policy); err != nil {
		return pos.Customer{}, err
	}

	existing, err := c.store.CustomerByTaxID(ctx, r.TaxID)
	if err != nil {
		return pos.Customer{}, fmt.Errorf("register customer: %w", err)
	}
	if existing != nil {
		return pos.Customer{}, &pos.DuplicateKeyError{Entity: "customer", Key: strconv.FormatInt(int64(r.TaxID), 10)}
	}

	customer, err := c.store.InsertCustomer(ctx, pos.Customer{
		TaxID:  r.TaxID,
		Name:   strings.TrimSpace(r.Name),
		Phone:  r.Phone,
		Policy: r.Policy,
	})
	if err != nil {
		if errors.Is(err, pos.ErrDuplicateKey) {
			c.log.Info("concurrent registration lost the race", zap.Int64("tax_id", int64(r.TaxID)))
			return pos.Customer{}, err
		}
		return pos.Customer{}, fmt.Errorf("register customer: %w", err)
	}

	c.log.Info("customer registered",
		zap.Int64("customer_id", int64(customer.ID)),
		zap.Int64("tax_id", int64(customer.TaxID)),
		zap.Stringer("policy", customer.Policy))
	return customer, nil
}

// FindByTaxID returns nil, nil when no customer has the tax id.
func (c *Customers) FindByTaxID(ctx context.Context, taxID pos.TaxID) (*pos.Customer, error) {
	customer, err := c.store.CustomerByTaxID(ctx, taxID)
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	return customer, nil
}

// Update rewrites the customer's name, phone and discount policy.
func (c *Customers) Update(ctx context.Context, taxID pos.TaxID, name string, phone int64, policy pos.DiscountPolicy) (pos.Customer, error) {
	if err := validateDetails(name, phone, policy); err != nil {
		return pos.Customer{}, err
	}
	updated := pos.Customer{TaxID: taxID, Name: strings.TrimSpace(name), Phone: phone, Policy: policy}
	if err := c.store.UpdateCustomer(ctx, updated); err != nil {
		return pos.Customer{}, fmt.Errorf("update customer: %w", err)
	}

	customer, err := c.store.CustomerByTaxID(ctx, taxID)
	if err != nil {
		return pos.Customer{}, fmt.Errorf("update customer: %w", err)
	}
	if customer == nil {
		return pos.Customer{}, fmt.Errorf("%w: tax id %d", pos.ErrCustomerNotFound, taxID)
	}
	c.log.Info("customer updated", zap.Int64("tax_id", int64(taxID)), zap.Stringer("policy", policy))
	return *customer, nil
}

func validateDetails(name string, phone int64, policy pos.DiscountPolicy) error {
	if strings.TrimSpace(name) == "" {
		return &pos.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if phone == 0 {
		return &pos.ValidationError{Field: "phone", Reason: "must be filled in"}
	}
	if !policy.Valid() {
		return &pos.ValidationError{Field: "discount_policy", Reason: fmt.Sprintf("unknown policy %d", int(policy))}
	}
	return nil
}
