// Package models defines the typed schemas for the Cosmic Works record
// collections: products, customers, and sales orders. The documents were
// originally authored for a document database and use "_id" as the identity
// field; the canonical Go serialization uses "id". Decoding accepts either
// spelling, encoding always emits "id".
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Tag is a piece of metadata associated with a product.
type Tag struct {
	// ID is the tag identifier.
	ID string `json:"id"`
	// Name is the human-readable tag label.
	Name string `json:"name"`
}

// Product is a catalog item from the product collection. ContentVector is
// the co-located embedding used for similarity search; it must never leave
// the retrieval subsystem — use WithoutVector for any external return path.
type Product struct {
	// ID is the stable document identity.
	ID string `json:"id"`
	// CategoryID identifies the product category.
	CategoryID string `json:"categoryId"`
	// CategoryName is the display name of the category.
	CategoryName string `json:"categoryName"`
	// SKU is the stock keeping unit code.
	SKU string `json:"sku"`
	// Name is the product display name.
	Name string `json:"name"`
	// Description is the marketing description.
	Description string `json:"description"`
	// Price is the list price in the store currency.
	Price float64 `json:"price"`
	// Tags holds the product's metadata tags.
	Tags []Tag `json:"tags"`
	// ContentVector is the embedding over the product text.
	// Omitted from JSON when empty so stripped views serialize cleanly.
	ContentVector []float32 `json:"contentVector,omitempty"`
}

// Address is a postal address on a customer record.
type Address struct {
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	State        string `json:"state"`
	Country      string `json:"country"`
	ZipCode      string `json:"zipCode"`
}

// Password holds the salted credential hash stored on a customer document.
// The plaintext is never stored or transmitted by this system.
type Password struct {
	Hash string `json:"hash"`
	Salt string `json:"salt"`
}

// Customer is a record from the customer collection.
type Customer struct {
	// ID is the stable document identity.
	ID string `json:"id"`
	// CustomerID is the business-facing customer number.
	CustomerID string `json:"customerId"`
	// Title is the optional salutation ("Mr.", "Ms.", ...).
	Title string `json:"title,omitempty"`
	// FirstName is the customer's given name.
	FirstName string `json:"firstName"`
	// LastName is the customer's family name.
	LastName string `json:"lastName"`
	// EmailAddress is the contact email.
	EmailAddress string `json:"emailAddress"`
	// PhoneNumber is the contact phone number.
	PhoneNumber string `json:"phoneNumber"`
	// CreationDate is when the customer record was created.
	CreationDate time.Time `json:"creationDate"`
	// Addresses holds the customer's postal addresses.
	Addresses []Address `json:"addresses"`
	// Password is the salted credential hash.
	Password Password `json:"password"`
	// SalesOrderCount is the number of orders placed by this customer.
	SalesOrderCount int `json:"salesOrderCount"`
}

// SalesOrderDetail is a single line item on a sales order.
type SalesOrderDetail struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// SalesOrder is a record from the sales order collection.
type SalesOrder struct {
	// ID is the stable document identity.
	ID string `json:"id"`
	// CustomerID references the ordering customer.
	CustomerID string `json:"customerId"`
	// OrderDate is when the order was placed.
	OrderDate time.Time `json:"orderDate"`
	// ShipDate is when the order shipped.
	ShipDate time.Time `json:"shipDate"`
	// Details holds the order line items.
	Details []SalesOrderDetail `json:"details"`
}

// ValidationError reports a document that failed schema validation at a
// store boundary. Records are never partially constructed — a document that
// does not validate is rejected whole.
type ValidationError struct {
	// Collection names the collection the document came from.
	Collection string
	// Reason describes what failed to validate.
	Reason string
	// Err is the underlying decode error, if any.
	Err error
}

// Error renders the validation failure with its collection context.
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("models: invalid %s document: %s: %v", e.Collection, e.Reason, e.Err)
	}
	return fmt.Sprintf("models: invalid %s document: %s", e.Collection, e.Reason)
}

// Unwrap exposes the underlying decode error for errors.Is/As.
func (e *ValidationError) Unwrap() error { return e.Err }

// aliasID holds the legacy "_id" spelling found in externally-authored
// documents. Used by the UnmarshalJSON implementations below.
type aliasID struct {
	ID string `json:"_id"`
}

// UnmarshalJSON accepts both "id" and the legacy "_id" identity field.
// When both are present, "id" wins.
func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	aux := struct {
		*plain
		aliasID
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = aux.aliasID.ID
	}
	return nil
}

// UnmarshalJSON accepts both "id" and the legacy "_id" identity field.
func (c *Customer) UnmarshalJSON(data []byte) error {
	type plain Customer
	aux := struct {
		*plain
		aliasID
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = aux.aliasID.ID
	}
	return nil
}

// UnmarshalJSON accepts both "id" and the legacy "_id" identity field.
func (s *SalesOrder) UnmarshalJSON(data []byte) error {
	type plain SalesOrder
	aux := struct {
		*plain
		aliasID
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = aux.aliasID.ID
	}
	return nil
}

// UnmarshalJSON accepts both "id" and the legacy "_id" identity field.
func (t *Tag) UnmarshalJSON(data []byte) error {
	type plain Tag
	aux := struct {
		*plain
		aliasID
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = aux.aliasID.ID
	}
	return nil
}

// WithoutVector returns a copy of the product with the embedding removed.
// This is the serialization view used by every path that returns a product
// to a caller outside the retrieval subsystem.
func (p Product) WithoutVector() Product {
	p.ContentVector = nil
	return p
}

// EmbeddingText returns the text that is embedded for similarity search:
// the product name, category, description, and tag names joined together.
func (p Product) EmbeddingText() string {
	text := p.Name + ". " + p.CategoryName + ". " + p.Description
	for _, t := range p.Tags {
		text += " " + t.Name
	}
	return text
}

// Validate checks the invariants a product document must satisfy before it
// is accepted from a store or an ingestion source.
func (p Product) Validate() error {
	if p.ID == "" {
		return &ValidationError{Collection: "product", Reason: "missing id"}
	}
	if p.Name == "" {
		return &ValidationError{Collection: "product", Reason: "missing name"}
	}
	return nil
}

// Validate checks the invariants a customer document must satisfy.
func (c Customer) Validate() error {
	if c.ID == "" {
		return &ValidationError{Collection: "customer", Reason: "missing id"}
	}
	if c.CustomerID == "" {
		return &ValidationError{Collection: "customer", Reason: "missing customerId"}
	}
	return nil
}

// Validate checks the invariants a sales order document must satisfy.
func (s SalesOrder) Validate() error {
	if s.ID == "" {
		return &ValidationError{Collection: "salesOrder", Reason: "missing id"}
	}
	if s.CustomerID == "" {
		return &ValidationError{Collection: "salesOrder", Reason: "missing customerId"}
	}
	return nil
}
