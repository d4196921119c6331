package model

import "testing"

func TestFieldBagHas(t *testing.T) {
	bag := FieldBag{
		"cf_product": "backup",
		"cf_blank":   "  ",
		"cf_nil":     nil,
		"cf_zero":    0,
		"cf_false":   false,
		"cf_list":    []any{},
	}
	tests := map[string]bool{
		"cf_product": true,
		"cf_blank":   false,
		"cf_nil":     false,
		"cf_zero":    true,
		"cf_false":   true,
		"cf_list":    false,
		"cf_absent":  false,
	}
	for name, want := range tests {
		if got := bag.Has(name); got != want {
			t.Errorf("Has(%q) = %v, want %v", name, got, want)
		}
	}
	if _, ok := bag.Get("cf_blank"); ok {
		t.Error("Get must not return blank values")
	}
}

func TestFieldBagWithout(t *testing.T) {
	bag := FieldBag{"name": "Ann", "plan": "pro"}
	out := bag.Without("name")
	if _, ok := out["name"]; ok {
		t.Error("name should be removed")
	}
	if bag["name"] != "Ann" {
		t.Error("source bag must not change")
	}
	if out["plan"] != "pro" {
		t.Error("plan should be kept")
	}
}

func TestTicketFormHas(t *testing.T) {
	form := TicketForm{
		Subject:      "Backup failed",
		CustomFields: FieldBag{"cf_site": "example.com"},
		Extra:        FieldBag{"type": "Question"},
	}
	for _, name := range []string{"subject", "cf_site", "type"} {
		if !form.Has(name) {
			t.Errorf("expected %q to be present", name)
		}
	}
	for _, name := range []string{"description", "attachments", "cf_other"} {
		if form.Has(name) {
			t.Errorf("expected %q to be absent", name)
		}
	}
}
