// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

// Package ingest parses uploaded dataset files into domain records.
//
// CSV headers are matched case-insensitively with common aliases
// (customer_id / customerid / user_id all address the same column), so
// exports from different tools load without manual renaming. Rows missing
// their identifier are skipped and counted rather than failing the upload.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dmarceau/rewardly/internal/models"
)

// neutralRating substitutes for a missing or unparseable rating so the row
// still contributes its purchase signal.
const neutralRating = 3.0

// ErrMissingColumn is returned when a required column cannot be located in
// the header row.
var ErrMissingColumn = errors.New("required column missing")

// columnAliases maps canonical column names to their accepted spellings
// (after normalization).
var columnAliases = map[string][]string{
	"customer_id":    {"customer_id", "customerid", "customer", "user_id", "userid"},
	"product_id":     {"product_id", "productid", "product", "item_id", "itemid"},
	"gender":         {"gender", "sex"},
	"age_group":      {"age_group", "agegroup", "age"},
	"category":       {"category", "product_category"},
	"price":          {"price", "unit_price", "amount"},
	"rating":         {"rating", "score", "stars"},
	"purchase_count": {"purchase_count", "purchasecount", "purchases", "purchase", "quantity"},
	"email":          {"email", "email_address", "mail"},
}

// header maps canonical column names to field positions.
type header map[string]int

// normalizeColumn lowercases a header cell and collapses spaces and dashes
// to underscores.
func normalizeColumn(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return strings.Trim(name, "_")
}

func parseHeader(row []string) header {
	positions := make(map[string]int, len(row))
	for i, cell := range row {
		positions[normalizeColumn(cell)] = i
	}

	h := make(header)
	for canonical, aliases := range columnAliases {
		for _, alias := range aliases {
			if pos, ok := positions[alias]; ok {
				h[canonical] = pos
				break
			}
		}
	}
	return h
}

func (h header) get(row []string, column string) string {
	pos, ok := h[column]
	if !ok || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}

func (h header) require(columns ...string) error {
	for _, c := range columns {
		if _, ok := h[c]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}
	return nil
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

// ParseCustomers reads customer records from CSV. Returns the records and
// the number of skipped rows.
func ParseCustomers(r io.Reader) ([]models.Customer, int, error) {
	cr := newReader(r)
	headerRow, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read customers header: %w", err)
	}
	h := parseHeader(headerRow)
	if err := h.require("customer_id"); err != nil {
		return nil, 0, fmt.Errorf("customers: %w", err)
	}

	var customers []models.Customer
	var skipped int
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		id := h.get(row, "customer_id")
		if id == "" {
			skipped++
			continue
		}
		customers = append(customers, models.Customer{
			CustomerID: id,
			Gender:     h.get(row, "gender"),
			AgeGroup:   h.get(row, "age_group"),
		})
	}
	return customers, skipped, nil
}

// ParseProducts reads product records from CSV.
func ParseProducts(r io.Reader) ([]models.Product, int, error) {
	cr := newReader(r)
	headerRow, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read products header: %w", err)
	}
	h := parseHeader(headerRow)
	if err := h.require("product_id"); err != nil {
		return nil, 0, fmt.Errorf("products: %w", err)
	}

	var products []models.Product
	var skipped int
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		id := h.get(row, "product_id")
		if id == "" {
			skipped++
			continue
		}
		price, err := strconv.ParseFloat(h.get(row, "price"), 64)
		if err != nil {
			price = 0
		}
		products = append(products, models.Product{
			ProductID: id,
			Category:  h.get(row, "category"),
			Price:     price,
		})
	}
	return products, skipped, nil
}

// ParseInteractions reads interaction records from CSV. A missing rating
// defaults to the neutral midpoint rather than dropping the row.
func ParseInteractions(r io.Reader) ([]models.Interaction, int, error) {
	cr := newReader(r)
	headerRow, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read interactions header: %w", err)
	}
	h := parseHeader(headerRow)
	if err := h.require("customer_id", "product_id"); err != nil {
		return nil, 0, fmt.Errorf("interactions: %w", err)
	}

	var interactions []models.Interaction
	var skipped int
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		customerID := h.get(row, "customer_id")
		productID := h.get(row, "product_id")
		if customerID == "" || productID == "" {
			skipped++
			continue
		}

		rating, err := strconv.ParseFloat(h.get(row, "rating"), 64)
		if err != nil {
			rating = neutralRating
		}
		purchases, err := strconv.Atoi(h.get(row, "purchase_count"))
		if err != nil || purchases < 0 {
			purchases = 0
		}

		interactions = append(interactions, models.Interaction{
			CustomerID:    customerID,
			ProductID:     productID,
			Rating:        models.ClampRating(rating),
			PurchaseCount: purchases,
			Email:         h.get(row, "email"),
		})
	}
	return interactions, skipped, nil
}

// Result summarizes a dataset upload.
type Result struct {
	Customers    int `json:"customers"`
	Products     int `json:"products"`
	Interactions int `json:"interactions"`
	SkippedRows  int `json:"skipped_rows"`
}

// ParseDataset reads the three CSV streams into a snapshot.
func ParseDataset(customers, products, interactions io.Reader) (*models.DatasetSnapshot, Result, error) {
	cs, skippedC, err := ParseCustomers(customers)
	if err != nil {
		return nil, Result{}, err
	}
	ps, skippedP, err := ParseProducts(products)
	if err != nil {
		return nil, Result{}, err
	}
	ins, skippedI, err := ParseInteractions(interactions)
	if err != nil {
		return nil, Result{}, err
	}

	snap := &models.DatasetSnapshot{
		Customers:    cs,
		Products:     ps,
		Interactions: ins,
	}
	res := Result{
		Customers:    len(cs),
		Products:     len(ps),
		Interactions: len(ins),
		SkippedRows:  skippedC + skippedP + skippedI,
	}
	return snap, res, nil
}
