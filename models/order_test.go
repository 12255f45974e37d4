package models

import "testing"

func TestOrderTotal(t *testing.T) {
	items := []OrderItem{
		{ProductID: 3, UnitPrice: 10.0, Quantity: 2},
		{ProductID: 7, UnitPrice: 4.5, Quantity: 3},
	}

	total := OrderTotal(items)
	if total != 33.5 {
		t.Errorf("Expected total 33.5, got %v", total)
	}
}

func TestOrderTotal_SingleItem(t *testing.T) {
	items := []OrderItem{
		{ProductID: 3, UnitPrice: 10.0, Quantity: 2},
	}

	if total := OrderTotal(items); total != 20.0 {
		t.Errorf("Expected total 20.0, got %v", total)
	}
}

func TestOrderTotal_NoItems(t *testing.T) {
	if total := OrderTotal(nil); total != 0 {
		t.Errorf("Expected total 0, got %v", total)
	}
}
